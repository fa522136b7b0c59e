package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quizforge/quizforge-backend/internal/http/response"
	"github.com/quizforge/quizforge-backend/internal/pipeline"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
	"github.com/quizforge/quizforge-backend/internal/services"
)

type JobHandler struct {
	log        *logger.Logger
	uploads    services.UploadService
	generation services.GenerationService
	assignment services.AssignmentService
	approval   services.ApprovalService
	controller *pipeline.Controller
}

func NewJobHandler(log *logger.Logger, uploads services.UploadService, generation services.GenerationService, assignment services.AssignmentService, approval services.ApprovalService, controller *pipeline.Controller) *JobHandler {
	return &JobHandler{
		log:        log.With("handler", "JobHandler"),
		uploads:    uploads,
		generation: generation,
		assignment: assignment,
		approval:   approval,
		controller: controller,
	}
}

// GET /api/jobs?status=a,b
func (h *JobHandler) ListJobs(c *gin.Context) {
	var statuses []string
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, s)
			}
		}
	}
	jobs, err := h.uploads.List(c.Request.Context(), statuses)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": jobs})
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.uploads.GetByID(c.Request.Context(), jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/jobs/:id/review
func (h *JobHandler) GetReviewBundle(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.uploads.GetByID(c.Request.Context(), jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	bundle, err := job.Review()
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	suggestions, err := job.Suggestions()
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"bundle": bundle, "suggestions": suggestions})
}

// POST /api/jobs/:id/plan
func (h *JobHandler) PlanJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.generation.Plan(c.Request.Context(), jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/extract
func (h *JobHandler) ExtractJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.generation.Extract(c.Request.Context(), jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/generate
//
// Generation runs for minutes; the request only kicks it off. Progress and
// finalization arrive over the SSE stream.
func (h *JobHandler) GenerateJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	go func() {
		if _, err := h.generation.Start(context.Background(), jobID); err != nil {
			h.log.Error("Generation run failed", "job_id", jobID, "error", err)
		}
	}()
	response.RespondAccepted(c, gin.H{"job_id": jobID, "started": true})
}

// POST /api/jobs/:id/retry
func (h *JobHandler) RetryJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	go func() {
		if _, err := h.generation.Retry(context.Background(), jobID); err != nil {
			h.log.Error("Generation retry failed", "job_id", jobID, "error", err)
		}
	}()
	response.RespondAccepted(c, gin.H{"job_id": jobID, "started": true})
}

// POST /api/jobs/:id/assignments/suggest
func (h *JobHandler) SuggestAssignments(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.assignment.Suggest(c.Request.Context(), jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/groups/:groupId/approve
func (h *JobHandler) ApproveGroup(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	groupID := strings.TrimSpace(c.Param("groupId"))
	if groupID == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_group_id", nil)
		return
	}
	job, err := h.approval.Approve(c.Request.Context(), jobID, groupID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/reset
func (h *JobHandler) ResetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.controller.Reset(c.Request.Context(), jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/archive
func (h *JobHandler) ArchiveJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.controller.Archive(c.Request.Context(), jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
