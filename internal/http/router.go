package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/quizforge/quizforge-backend/internal/http/handlers"
	httpMW "github.com/quizforge/quizforge-backend/internal/http/middleware"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	UploadHandler   *httpH.UploadHandler
	JobHandler      *httpH.JobHandler
	TaxonomyHandler *httpH.TaxonomyHandler
	RealtimeHandler *httpH.RealtimeHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	api.Use(httpMW.RequireUser())
	{
		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}

		// Intake
		if cfg.UploadHandler != nil {
			api.POST("/uploads/text", cfg.UploadHandler.CreateFromText)
			api.POST("/uploads/file", cfg.UploadHandler.CreateFromFile)
			api.POST("/jobs/:id/ocr/start", cfg.UploadHandler.BeginOCR)
			api.POST("/jobs/:id/ocr/complete", cfg.UploadHandler.CompleteOCR)
		}

		// Jobs
		if cfg.JobHandler != nil {
			api.GET("/jobs", cfg.JobHandler.ListJobs)
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.GET("/jobs/:id/review", cfg.JobHandler.GetReviewBundle)
			api.POST("/jobs/:id/plan", cfg.JobHandler.PlanJob)
			api.POST("/jobs/:id/extract", cfg.JobHandler.ExtractJob)
			api.POST("/jobs/:id/generate", cfg.JobHandler.GenerateJob)
			api.POST("/jobs/:id/retry", cfg.JobHandler.RetryJob)
			api.POST("/jobs/:id/assignments/suggest", cfg.JobHandler.SuggestAssignments)
			api.POST("/jobs/:id/groups/:groupId/approve", cfg.JobHandler.ApproveGroup)
			api.POST("/jobs/:id/reset", cfg.JobHandler.ResetJob)
			api.POST("/jobs/:id/archive", cfg.JobHandler.ArchiveJob)
		}

		// Taxonomy
		if cfg.TaxonomyHandler != nil {
			api.GET("/topics", cfg.TaxonomyHandler.ListTopics)
			api.GET("/topics/:id/chapters", cfg.TaxonomyHandler.ListTopicChapters)
		}
	}

	return r
}
