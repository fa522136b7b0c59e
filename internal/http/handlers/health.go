package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizforge/quizforge-backend/internal/data/db"
	"github.com/quizforge/quizforge-backend/internal/http/response"
)

type HealthHandler struct {
	pg *db.PostgresService
}

func NewHealthHandler(pg *db.PostgresService) *HealthHandler {
	return &HealthHandler{pg: pg}
}

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.pg != nil {
		if err := h.pg.Ping(); err != nil {
			response.RespondError(c, http.StatusServiceUnavailable, "db_unreachable", err)
			return
		}
	}
	response.RespondOK(c, gin.H{"status": "ok"})
}
