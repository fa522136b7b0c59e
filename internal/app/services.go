package app

import (
	"context"

	"gorm.io/gorm"

	redisclient "github.com/quizforge/quizforge-backend/internal/clients/redis"
	"github.com/quizforge/quizforge-backend/internal/pipeline"
	"github.com/quizforge/quizforge-backend/internal/pipeline/merge"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
	"github.com/quizforge/quizforge-backend/internal/services"
	"github.com/quizforge/quizforge-backend/internal/sse"
)

type Services struct {
	AI         services.AIClient
	Uploads    services.UploadService
	Generation services.GenerationService
	Assignment services.AssignmentService
	Approval   services.ApprovalService
	Controller *pipeline.Controller
	Bus        redisclient.JobBus
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, hub *sse.Hub) (Services, error) {
	ai, err := services.NewAIClient(log)
	if err != nil {
		return Services{}, err
	}

	var bus redisclient.JobBus
	if cfg.RedisAddr != "" {
		bus, err = redisclient.NewJobBus(log)
		if err != nil {
			return Services{}, err
		}
		if err := bus.StartForwarder(context.Background(), hub.Broadcast); err != nil {
			return Services{}, err
		}
	}
	// With no bus the notifier writes to the local hub directly, so SSE
	// keeps working on a single instance without redis.
	notify := services.NewJobNotifier(log, bus, hub)

	controller := pipeline.NewController(db, log, r.Jobs, notify)
	merger := merge.NewMerger(log, r.Taxonomy, r.Mcqs, r.Flashcards)

	return Services{
		AI:         ai,
		Uploads:    services.NewUploadService(log, r.Jobs, controller),
		Generation: services.NewGenerationService(log, r.Jobs, controller, ai),
		Assignment: services.NewAssignmentService(db, log, r.Jobs, r.Taxonomy, ai),
		Approval:   services.NewApprovalService(db, log, r.Jobs, merger, notify),
		Controller: controller,
		Bus:        bus,
	}, nil
}
