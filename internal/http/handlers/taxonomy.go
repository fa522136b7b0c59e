package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	repos "github.com/quizforge/quizforge-backend/internal/data/repos/content"
	"github.com/quizforge/quizforge-backend/internal/http/response"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
)

type TaxonomyHandler struct {
	taxonomy repos.TaxonomyRepo
}

func NewTaxonomyHandler(taxonomy repos.TaxonomyRepo) *TaxonomyHandler {
	return &TaxonomyHandler{taxonomy: taxonomy}
}

// GET /api/topics
func (h *TaxonomyHandler) ListTopics(c *gin.Context) {
	topics, err := h.taxonomy.ListTopics(dbctx.New(c.Request.Context()))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"topics": topics})
}

// GET /api/topics/:id/chapters
func (h *TaxonomyHandler) ListTopicChapters(c *gin.Context) {
	topicID := strings.TrimSpace(c.Param("id"))
	if topicID == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_topic_id", nil)
		return
	}
	dbc := dbctx.New(c.Request.Context())
	topic, err := h.taxonomy.GetTopic(dbc, topicID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	if topic == nil {
		response.RespondError(c, http.StatusNotFound, "topic_not_found", nil)
		return
	}
	chapters, err := h.taxonomy.ListChaptersByTopic(dbc, topicID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"topic": topic, "chapters": chapters})
}
