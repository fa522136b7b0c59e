package services

import (
	"context"

	redisclient "github.com/quizforge/quizforge-backend/internal/clients/redis"
	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/pipeline"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
	"github.com/quizforge/quizforge-backend/internal/sse"
)

// JobEvent is the wire payload SSE clients receive for every job change.
type JobEvent struct {
	JobID            string `json:"job_id"`
	Status           string `json:"status"`
	Pipeline         string `json:"pipeline"`
	Title            string `json:"title,omitempty"`
	Message          string `json:"message,omitempty"`
	CompletedBatches int    `json:"completed_batches"`
	FailedBatches    int    `json:"failed_batches"`
	TotalBatches     int    `json:"total_batches"`
}

// jobNotifier publishes job changes onto the redis bus when one is
// configured; the bus forwarder on each instance feeds them into its local
// SSE hub. Without a bus, events go straight to the local hub so single
// -instance deployments still stream. Notification is best effort and never
// fails the pipeline action that produced it.
type jobNotifier struct {
	log *logger.Logger
	bus redisclient.JobBus
	hub *sse.Hub
}

func NewJobNotifier(log *logger.Logger, bus redisclient.JobBus, hub *sse.Hub) pipeline.Notifier {
	return &jobNotifier{
		log: log.With("service", "JobNotifier"),
		bus: bus,
		hub: hub,
	}
}

func (n *jobNotifier) JobChanged(ctx context.Context, job *types.GenerationJob, message string) {
	if job == nil {
		return
	}
	msg := sse.Message{
		Channel: job.UserID.String(),
		Event:   sse.EventJobChanged,
		Data: JobEvent{
			JobID:            job.ID.String(),
			Status:           job.Status,
			Pipeline:         job.Pipeline,
			Title:            job.Title,
			Message:          message,
			CompletedBatches: job.CompletedBatches,
			FailedBatches:    job.FailedBatches,
			TotalBatches:     job.TotalBatches,
		},
	}
	if n.bus != nil {
		if err := n.bus.Publish(ctx, msg); err != nil {
			n.log.Warn("Job event publish failed", "job_id", job.ID, "error", err)
		}
		return
	}
	if n.hub != nil {
		n.hub.Broadcast(msg)
	}
}
