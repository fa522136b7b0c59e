package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	repos "github.com/quizforge/quizforge-backend/internal/data/repos/content"
	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/pipeline"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
	"github.com/quizforge/quizforge-backend/internal/platform/apierr"
	"github.com/quizforge/quizforge-backend/internal/platform/envutil"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

// GenerationService drives the model-facing stages: planning, marrow
// extraction, and fanned-out batch generation. Batch outcomes funnel through
// the controller's ReportBatch, which owns all counter bookkeeping and
// finalization; workers here never touch job state directly.
type GenerationService interface {
	Plan(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error)
	Extract(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error)
	// Start flips the job into generating_content and runs every not-yet
	// -completed batch to a reported outcome before returning.
	Start(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error)
	Retry(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error)
}

type generationService struct {
	log          *logger.Logger
	jobs         repos.GenerationJobRepo
	controller   *pipeline.Controller
	ai           AIClient
	batchSize    int
	concurrency  int
	batchTimeout time.Duration
	stageTimeout time.Duration
}

func NewGenerationService(log *logger.Logger, jobs repos.GenerationJobRepo, controller *pipeline.Controller, ai AIClient) GenerationService {
	serviceLog := log.With("service", "GenerationService")
	return &generationService{
		log:          serviceLog,
		jobs:         jobs,
		controller:   controller,
		ai:           ai,
		batchSize:    envutil.GetEnvAsInt("GENERATION_BATCH_SIZE", 10, log),
		concurrency:  envutil.GetEnvAsInt("GENERATION_CONCURRENCY", 3, log),
		batchTimeout: envutil.GetEnvAsDuration("GENERATION_BATCH_TIMEOUT", 2*time.Minute, log),
		stageTimeout: envutil.GetEnvAsDuration("GENERATION_STAGE_TIMEOUT", 3*time.Minute, log),
	}
}

// Plan asks the model for counts and a topic/chapter hint, then advances the
// job with plan, batch size and total_batches set in the same conditional
// write. Chunked jobs get one batch per chunk; unchunked jobs split the
// planned mcq count over fixed-size batches.
func (s *generationService) Plan(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error) {
	job, err := s.mustGet(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != pipeline.StatusPendingPlanning {
		return nil, apierr.Conflict("NOT_PENDING_PLANNING", fmt.Errorf("job %s is %s", jobID, job.Status))
	}

	sourceText := job.ExtractedText
	if sourceText == "" {
		sourceText = job.SourceText
	}
	if sourceText == "" {
		return nil, apierr.Conflict("NO_SOURCE_TEXT", fmt.Errorf("job %s has no text to plan from", jobID))
	}

	extractedCount := 0
	if job.Pipeline == types.PipelineMarrow {
		staged, err := job.Staged()
		if err != nil {
			return nil, err
		}
		if staged != nil {
			extractedCount = len(staged.ExtractedMcqs)
		}
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()
	suggestion, err := s.ai.PlanContent(stageCtx, sourceText, extractedCount)
	if err != nil {
		if ferr := s.controller.MarkFailed(ctx, jobID, "planning", err); ferr != nil {
			s.log.Error("Could not mark planning failure", "job_id", jobID, "error", ferr)
		}
		return nil, err
	}

	chunks, err := job.Chunks()
	if err != nil {
		return nil, err
	}
	totalBatches := len(chunks)
	if totalBatches == 0 {
		totalBatches = (suggestion.Plan.McqCount + s.batchSize - 1) / s.batchSize
		if totalBatches == 0 {
			totalBatches = 1
		}
	}

	return s.controller.Transition(ctx, jobID,
		[]string{pipeline.StatusPendingPlanning},
		pipeline.StatusPendingGeneration,
		map[string]interface{}{
			"suggested_plan":    types.MustJSON(suggestion.Plan),
			"suggested_topic":   suggestion.Topic,
			"suggested_chapter": suggestion.Chapter,
			"batch_size":        s.batchSize,
			"total_batches":     totalBatches,
		})
}

// Extract runs the marrow pre-stage: questions already present in the source
// are pulled into staged_content so planning and generation only cover new
// material. The job stays in pending_planning; the write is conditional so a
// concurrent plan or archive wins cleanly.
func (s *generationService) Extract(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error) {
	job, err := s.mustGet(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Pipeline != types.PipelineMarrow {
		return nil, apierr.BadRequest("NOT_MARROW_JOB", fmt.Errorf("job %s is a %s job", jobID, job.Pipeline))
	}
	if job.Status != pipeline.StatusPendingPlanning {
		return nil, apierr.Conflict("NOT_PENDING_PLANNING", fmt.Errorf("job %s is %s", jobID, job.Status))
	}

	sourceText := job.ExtractedText
	if sourceText == "" {
		sourceText = job.SourceText
	}
	if sourceText == "" {
		return nil, apierr.Conflict("NO_SOURCE_TEXT", fmt.Errorf("job %s has no text to extract from", jobID))
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()
	result, err := s.ai.ExtractContent(stageCtx, sourceText)
	if err != nil {
		if ferr := s.controller.MarkFailed(ctx, jobID, "extraction", err); ferr != nil {
			s.log.Error("Could not mark extraction failure", "job_id", jobID, "error", ferr)
		}
		return nil, err
	}

	dbc := dbctx.New(ctx)
	applied, err := s.jobs.UpdateFieldsIfStatus(dbc, jobID,
		[]string{pipeline.StatusPendingPlanning},
		map[string]interface{}{
			"staged_content":          types.MustJSON(result.Staged),
			"suggested_new_mcq_count": result.SuggestedNewMcqs,
			"suggested_key_topics":    types.MustJSON(result.KeyTopics),
		})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apierr.Conflict("JOB_MOVED_ON", fmt.Errorf("job %s left pending_planning during extraction", jobID))
	}
	s.log.Info("Extraction staged", "job_id", jobID, "extracted_mcqs", len(result.Staged.ExtractedMcqs))
	return s.mustGet(ctx, jobID)
}

func (s *generationService) Start(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error) {
	job, err := s.controller.Transition(ctx, jobID,
		[]string{pipeline.StatusPendingGeneration},
		pipeline.StatusGeneratingContent, nil)
	if err != nil {
		return nil, err
	}
	if job.TotalBatches <= 0 {
		err := fmt.Errorf("job has no planned batches")
		if ferr := s.controller.MarkFailed(ctx, jobID, "generation", err); ferr != nil {
			s.log.Error("Could not mark generation failure", "job_id", jobID, "error", ferr)
		}
		return nil, err
	}
	if err := s.runBatches(ctx, job); err != nil {
		return nil, err
	}
	return s.mustGet(ctx, jobID)
}

// Retry re-enters generation after a partial failure. Counters rewind to the
// batches that actually succeeded; runBatches then skips those batch numbers
// and only the failed ones hit the model again.
func (s *generationService) Retry(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error) {
	job, err := s.mustGet(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != pipeline.StatusGenerationFailedPart {
		return nil, apierr.Conflict("NOT_RETRYABLE", fmt.Errorf("job %s is %s", jobID, job.Status))
	}
	batches, err := job.Batches()
	if err != nil {
		return nil, err
	}
	if _, err := s.controller.Transition(ctx, jobID,
		[]string{pipeline.StatusGenerationFailedPart},
		pipeline.StatusPendingGeneration,
		map[string]interface{}{
			"completed_batches":    len(batches),
			"failed_batches":       0,
			"failed_batch_numbers": nil,
		}); err != nil {
		return nil, err
	}
	return s.Start(ctx, jobID)
}

// runBatches fans the remaining batch numbers out to bounded workers. Worker
// errors are reported, never returned: a failed batch is a recorded outcome,
// not a failure of the run.
func (s *generationService) runBatches(ctx context.Context, job *types.GenerationJob) error {
	plan, err := job.Plan()
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("job %s has no plan", job.ID)
	}
	chunks, err := job.Chunks()
	if err != nil {
		return err
	}
	done, err := job.Batches()
	if err != nil {
		return err
	}
	completed := make(map[int]bool, len(done))
	for _, b := range done {
		completed[b.BatchNumber] = true
	}

	mcqPer, cardPer := splitCounts(plan.McqCount, job.TotalBatches), splitCounts(plan.FlashcardCount, job.TotalBatches)

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for batchNo := 1; batchNo <= job.TotalBatches; batchNo++ {
		if completed[batchNo] {
			continue
		}
		batchNo := batchNo
		g.Go(func() error {
			source := job.SourceText
			if job.ExtractedText != "" {
				source = job.ExtractedText
			}
			if len(chunks) >= job.TotalBatches {
				source = chunks[batchNo-1]
			}
			req := BatchRequest{
				BatchNumber:    batchNo,
				SourceText:     source,
				McqCount:       mcqPer[batchNo-1],
				FlashcardCount: cardPer[batchNo-1],
				TopicHint:      job.SuggestedTopic,
				ChapterHint:    job.SuggestedChapter,
			}

			batchCtx, cancel := context.WithTimeout(groupCtx, s.batchTimeout)
			defer cancel()
			result, genErr := s.ai.GenerateBatch(batchCtx, req)
			if genErr != nil {
				result = &types.BatchResult{BatchNumber: batchNo}
			}
			if err := s.controller.ReportBatch(ctx, job.ID, result, genErr); err != nil {
				s.log.Error("Batch report failed", "job_id", job.ID, "batch_number", batchNo, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *generationService) mustGet(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error) {
	job, err := s.jobs.GetByID(dbctx.New(ctx), jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apierr.NotFound("JOB_NOT_FOUND", fmt.Errorf("job %s not found", jobID))
	}
	return job, nil
}

// splitCounts spreads total over n batches, front-loading the remainder.
func splitCounts(total, n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	base, rem := total/n, total%n
	for i := range out {
		out[i] = base
		if i < rem {
			out[i]++
		}
	}
	return out
}
