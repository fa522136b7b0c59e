package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	repos "github.com/quizforge/quizforge-backend/internal/data/repos/content"
	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/normalization"
	"github.com/quizforge/quizforge-backend/internal/pipeline"
	"github.com/quizforge/quizforge-backend/internal/pipeline/assign"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
	"github.com/quizforge/quizforge-backend/internal/platform/apierr"
	"github.com/quizforge/quizforge-backend/internal/platform/envutil"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

// AssignmentService asks the model how the review bundle should be grouped
// into topics and chapters, repairs the proposal into an exact partition, and
// appends the result to the job's suggestion list. Re-running appends a fresh
// batch; earlier suggestions and their approvals are never rewritten.
type AssignmentService interface {
	Suggest(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error)
}

type assignmentService struct {
	db           *gorm.DB
	log          *logger.Logger
	jobs         repos.GenerationJobRepo
	taxonomy     repos.TaxonomyRepo
	ai           AIClient
	stageTimeout time.Duration
}

func NewAssignmentService(db *gorm.DB, log *logger.Logger, jobs repos.GenerationJobRepo, taxonomy repos.TaxonomyRepo, ai AIClient) AssignmentService {
	return &assignmentService{
		db:           db,
		log:          log.With("service", "AssignmentService"),
		jobs:         jobs,
		taxonomy:     taxonomy,
		ai:           ai,
		stageTimeout: envutil.GetEnvAsDuration("ASSIGNMENT_TIMEOUT", 2*time.Minute, log),
	}
}

// Suggest runs the slow model call against a snapshot, then re-reads the
// suggestion list under a row lock before appending. A suggest or approval
// that committed while the model was thinking is preserved; only the append
// itself happens inside the transaction.
func (s *assignmentService) Suggest(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error) {
	dbc := dbctx.New(ctx)
	job, err := s.jobs.GetByID(dbc, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apierr.NotFound("JOB_NOT_FOUND", fmt.Errorf("job %s not found", jobID))
	}
	if job.Status != pipeline.StatusPendingAssignment {
		return nil, apierr.Conflict("NOT_PENDING_ASSIGNMENT", fmt.Errorf("job %s is %s", jobID, job.Status))
	}
	bundle, err := job.Review()
	if err != nil {
		return nil, err
	}
	if bundle == nil || (len(bundle.Mcqs) == 0 && len(bundle.Flashcards) == 0) {
		return nil, apierr.Conflict("EMPTY_BUNDLE", fmt.Errorf("job %s has no review bundle", jobID))
	}

	snapshot, topicNames, chaptersByTopic, err := s.loadTaxonomy(dbc)
	if err != nil {
		return nil, err
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()
	proposed, err := s.ai.SuggestAssignment(stageCtx, AssignmentRequest{
		Bundle:           bundle,
		ExistingTopics:   topicNames,
		ExistingChapters: chaptersByTopic,
		TopicHint:        job.SuggestedTopic,
		ChapterHint:      job.SuggestedChapter,
	})
	if err != nil {
		// Unreachable model is not fatal here: the resolver still produces
		// a full-cover fallback batch the operator can edit.
		s.log.Warn("Assignment proposal unavailable, falling back", "job_id", jobID, "error", err)
		proposed = nil
	}

	var after *types.GenerationJob
	var appended int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.WithTx(ctx, tx)
		locked, err := s.jobs.LockForUpdate(dbc, jobID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apierr.NotFound("JOB_NOT_FOUND", fmt.Errorf("job %s not found", jobID))
		}
		if locked.Status != pipeline.StatusPendingAssignment {
			return apierr.Conflict("JOB_MOVED_ON", fmt.Errorf("job %s left pending_assignment during suggestion", jobID))
		}

		bundle, err := locked.Review()
		if err != nil {
			return err
		}
		existing, err := locked.Suggestions()
		if err != nil {
			return err
		}
		// existingCount feeds the GroupID ordinals, so it has to come from
		// the locked row, not the pre-model snapshot.
		resolved, err := assign.Resolve(locked.ID, bundle, snapshot, proposed, locked.SuggestedTopic, locked.SuggestedChapter, len(existing))
		if err != nil {
			return err
		}
		if err := assign.Verify(bundle, resolved); err != nil {
			return fmt.Errorf("resolver produced invalid partition: %w", err)
		}

		appended = len(resolved)
		if err := s.jobs.UpdateFields(dbc, jobID, map[string]interface{}{
			"assignment_suggestions": types.MustJSON(append(existing, resolved...)),
		}); err != nil {
			return err
		}
		after, err = s.jobs.GetByID(dbc, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Assignment suggestions appended", "job_id", jobID, "groups", appended)
	return after, nil
}

func (s *assignmentService) loadTaxonomy(dbc dbctx.Context) (assign.TaxonomySnapshot, []string, map[string][]string, error) {
	topics, err := s.taxonomy.ListTopics(dbc)
	if err != nil {
		return assign.TaxonomySnapshot{}, nil, nil, err
	}
	chapters, err := s.taxonomy.ListChapters(dbc)
	if err != nil {
		return assign.TaxonomySnapshot{}, nil, nil, err
	}

	snapshot := assign.TaxonomySnapshot{
		Topics:   make(map[string]string, len(topics)),
		Chapters: make(map[string]string, len(chapters)),
	}
	topicNameByID := make(map[string]string, len(topics))
	var topicNames []string
	for _, t := range topics {
		snapshot.Topics[normalization.NameID(t.Name)] = t.Name
		topicNameByID[t.ID] = t.Name
		topicNames = append(topicNames, t.Name)
	}
	chaptersByTopic := make(map[string][]string)
	for _, c := range chapters {
		snapshot.Chapters[normalization.NameID(c.Name)] = c.Name
		topicName := topicNameByID[c.TopicID]
		chaptersByTopic[topicName] = append(chaptersByTopic[topicName], c.Name)
	}
	return snapshot, topicNames, chaptersByTopic, nil
}
