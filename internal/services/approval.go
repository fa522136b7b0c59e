package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	repos "github.com/quizforge/quizforge-backend/internal/data/repos/content"
	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/pipeline"
	"github.com/quizforge/quizforge-backend/internal/pipeline/merge"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
	"github.com/quizforge/quizforge-backend/internal/platform/apierr"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

// ApprovalService commits approved suggestion groups. Approving a group
// merges its slice of the review bundle into canonical storage and marks the
// group approved in the same transaction; the job completes once the union of
// approved groups covers the whole bundle. Approving the same group again is
// a no-op.
type ApprovalService interface {
	Approve(ctx context.Context, jobID uuid.UUID, groupID string) (*types.GenerationJob, error)
}

type approvalService struct {
	db     *gorm.DB
	log    *logger.Logger
	jobs   repos.GenerationJobRepo
	merger *merge.Merger
	notify pipeline.Notifier
}

func NewApprovalService(db *gorm.DB, log *logger.Logger, jobs repos.GenerationJobRepo, merger *merge.Merger, notify pipeline.Notifier) ApprovalService {
	if notify == nil {
		notify = pipeline.NopNotifier{}
	}
	return &approvalService{
		db:     db,
		log:    log.With("service", "ApprovalService"),
		jobs:   jobs,
		merger: merger,
		notify: notify,
	}
}

func (s *approvalService) Approve(ctx context.Context, jobID uuid.UUID, groupID string) (*types.GenerationJob, error) {
	var after *types.GenerationJob
	var message string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.WithTx(ctx, tx)
		job, err := s.jobs.LockForUpdate(dbc, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return apierr.NotFound("JOB_NOT_FOUND", fmt.Errorf("job %s not found", jobID))
		}
		if job.Status != pipeline.StatusPendingAssignment {
			return apierr.Conflict("NOT_PENDING_ASSIGNMENT", fmt.Errorf("job %s is %s", jobID, job.Status))
		}

		suggestions, err := job.Suggestions()
		if err != nil {
			return err
		}
		idx := -1
		for i, g := range suggestions {
			if g.GroupID == groupID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apierr.NotFound("GROUP_NOT_FOUND", fmt.Errorf("group %s not on job %s", groupID, jobID))
		}
		if suggestions[idx].Approved {
			after = job
			return nil
		}

		result, err := s.merger.MergeGroup(dbc, job, suggestions[idx])
		if err != nil {
			return err
		}

		suggestions[idx].Approved = true
		updates := map[string]interface{}{
			"assignment_suggestions": types.MustJSON(suggestions),
			"approved_topic":         suggestions[idx].TopicName,
			"approved_chapter":       suggestions[idx].ChapterName,
		}

		bundle, err := job.Review()
		if err != nil {
			return err
		}
		if approvedCoverage(bundle, suggestions) {
			updates["status"] = pipeline.StatusCompleted
			message = "all content approved"
		} else {
			message = fmt.Sprintf("group approved into %s", result.ChapterID)
		}

		if err := s.jobs.UpdateFields(dbc, jobID, updates); err != nil {
			return err
		}
		after, err = s.jobs.GetByID(dbc, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if message != "" && after != nil {
		s.log.Info("Suggestion group approved", "job_id", jobID, "group_id", groupID, "status", after.Status)
		s.notify.JobChanged(ctx, after, message)
	}
	return after, nil
}

// approvedCoverage reports whether every bundle index is claimed by at least
// one approved group. Resolver re-runs append overlapping batches, so this is
// a union check, not a partition check.
func approvedCoverage(bundle *types.ReviewBundle, suggestions []types.AssignmentSuggestion) bool {
	if bundle == nil {
		return false
	}
	mcqSeen := make([]bool, len(bundle.Mcqs))
	cardSeen := make([]bool, len(bundle.Flashcards))
	for _, g := range suggestions {
		if !g.Approved {
			continue
		}
		for _, i := range g.McqIndexes {
			if i >= 0 && i < len(mcqSeen) {
				mcqSeen[i] = true
			}
		}
		for _, i := range g.FlashcardIndexes {
			if i >= 0 && i < len(cardSeen) {
				cardSeen[i] = true
			}
		}
	}
	for _, seen := range mcqSeen {
		if !seen {
			return false
		}
	}
	for _, seen := range cardSeen {
		if !seen {
			return false
		}
	}
	return true
}
