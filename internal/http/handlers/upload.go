package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quizforge/quizforge-backend/internal/http/middleware"
	"github.com/quizforge/quizforge-backend/internal/http/response"
	"github.com/quizforge/quizforge-backend/internal/services"
)

type UploadHandler struct {
	uploads services.UploadService
}

func NewUploadHandler(uploads services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

type createTextUploadRequest struct {
	Title      string `json:"title"`
	SourceText string `json:"source_text" binding:"required"`
	Pipeline   string `json:"pipeline"`
}

type createFileUploadRequest struct {
	Title    string `json:"title"`
	FileName string `json:"file_name" binding:"required"`
	Pipeline string `json:"pipeline"`
}

type completeOCRRequest struct {
	ExtractedText string `json:"extracted_text" binding:"required"`
}

// POST /api/uploads/text
func (h *UploadHandler) CreateFromText(c *gin.Context) {
	var req createTextUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	job, err := h.uploads.CreateFromText(c.Request.Context(), middleware.MustUserID(c), req.Title, req.SourceText, req.Pipeline)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"job": job})
}

// POST /api/uploads/file
func (h *UploadHandler) CreateFromFile(c *gin.Context) {
	var req createFileUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	job, err := h.uploads.CreateFromFile(c.Request.Context(), middleware.MustUserID(c), req.Title, req.FileName, req.Pipeline)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"job": job})
}

// POST /api/jobs/:id/ocr/start
func (h *UploadHandler) BeginOCR(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.uploads.BeginOCR(c.Request.Context(), jobID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/ocr/complete
func (h *UploadHandler) CompleteOCR(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	var req completeOCRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	job, err := h.uploads.CompleteOCR(c.Request.Context(), jobID, req.ExtractedText)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
