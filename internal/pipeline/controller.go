package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	repos "github.com/quizforge/quizforge-backend/internal/data/repos/content"
	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

// Notifier receives job lifecycle events for the operator UI. Implementations
// must tolerate being called after the triggering transaction committed.
type Notifier interface {
	JobChanged(ctx context.Context, job *types.GenerationJob, message string)
}

type NopNotifier struct{}

func (NopNotifier) JobChanged(context.Context, *types.GenerationJob, string) {}

// Controller advances jobs through the status machine. Every advance goes
// through the job repo's conditional write; there is no owning process per
// job, so any number of operators and batch workers may call in
// concurrently.
type Controller struct {
	db     *gorm.DB
	log    *logger.Logger
	jobs   repos.GenerationJobRepo
	notify Notifier
}

func NewController(db *gorm.DB, baseLog *logger.Logger, jobs repos.GenerationJobRepo, notify Notifier) *Controller {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Controller{
		db:     db,
		log:    baseLog.With("component", "PipelineController"),
		jobs:   jobs,
		notify: notify,
	}
}

// Transition moves the job from one of the expected statuses to the target
// status, applying updates atomically with the status flip. Returns
// ErrConflict when the conditional write loses, ErrNotFound when the job
// does not exist.
func (c *Controller) Transition(ctx context.Context, jobID uuid.UUID, from []string, to string, updates map[string]interface{}) (*types.GenerationJob, error) {
	for _, f := range from {
		if !CanTransition(f, to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f, to)
		}
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to

	dbc := dbctx.New(ctx)
	applied, err := c.jobs.UpdateFieldsIfStatus(dbc, jobID, from, updates)
	if err != nil {
		return nil, err
	}
	if !applied {
		job, getErr := c.jobs.GetByID(dbc, jobID)
		if getErr != nil {
			return nil, getErr
		}
		if job == nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: expected %v, found %s", ErrConflict, from, job.Status)
	}

	job, err := c.jobs.GetByID(dbc, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	c.log.Info("Job transitioned", "job_id", jobID, "status", to)
	c.notify.JobChanged(ctx, job, "status: "+to)
	return job, nil
}

// ReportBatch records one batch worker's outcome. completed_batches counts
// every reported batch regardless of outcome; failures additionally append
// to errors and bump failed_batches. Results arriving after the job left
// generating_content (archived mid-flight, reset, already finalized) are
// discarded by re-checking status under the row lock. Redelivery of either
// outcome is dropped against the per-batch ledgers (generated_content for
// successes, failed_batch_numbers for failures). Out-of-order arrival is
// fine: the counter converges to total_batches either way.
func (c *Controller) ReportBatch(ctx context.Context, jobID uuid.UUID, result *types.BatchResult, batchErr error) error {
	var after *types.GenerationJob
	var message string

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.WithTx(ctx, tx)
		job, err := c.jobs.LockForUpdate(dbc, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return ErrNotFound
		}
		if job.Status != StatusGeneratingContent {
			c.log.Warn("Discarding late batch result", "job_id", jobID, "status", job.Status)
			return nil
		}

		batches, err := job.Batches()
		if err != nil {
			return err
		}
		errorList, err := job.ErrorList()
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		completed := job.CompletedBatches
		failed := job.FailedBatches

		if batchErr != nil {
			batchNo := 0
			if result != nil {
				batchNo = result.BatchNumber
			}
			failedNumbers, err := job.FailedBatchList()
			if err != nil {
				return err
			}
			if batchNo > 0 {
				for _, n := range failedNumbers {
					if n == batchNo {
						c.log.Warn("Duplicate batch failure dropped", "job_id", jobID, "batch_number", batchNo)
						return nil
					}
				}
				failedNumbers = append(failedNumbers, batchNo)
				updates["failed_batch_numbers"] = types.MustJSON(failedNumbers)
			}
			errorList = append(errorList, fmt.Sprintf("batch %d: %v", batchNo, batchErr))
			updates["errors"] = types.MustJSON(errorList)
			failed++
			completed++
		} else {
			if result == nil {
				return fmt.Errorf("batch result missing")
			}
			for _, b := range batches {
				if b.BatchNumber == result.BatchNumber {
					// duplicate delivery of the same batch; keep the ledger
					// append-only and the counter honest
					c.log.Warn("Duplicate batch result dropped", "job_id", jobID, "batch_number", result.BatchNumber)
					return nil
				}
			}
			batches = append(batches, *result)
			updates["generated_content"] = types.MustJSON(batches)
			completed++
		}
		updates["completed_batches"] = completed
		updates["failed_batches"] = failed

		if completed >= job.TotalBatches {
			succeeded := completed - failed
			switch {
			case failed == 0:
				bundle, err := flattenForReview(job, batches)
				if err != nil {
					return err
				}
				updates["final_awaiting_review_data"] = types.MustJSON(bundle)
				updates["status"] = StatusPendingAssignment
				message = "generation complete"
			case succeeded > 0:
				updates["status"] = StatusGenerationFailedPart
				message = "generation partially failed"
			default:
				errorList = append(errorList, "all generation batches failed")
				updates["errors"] = types.MustJSON(errorList)
				updates["status"] = StatusError
				message = "generation failed"
			}
		} else {
			message = fmt.Sprintf("batch %d/%d reported", completed, job.TotalBatches)
		}

		if err := c.jobs.UpdateFields(dbc, jobID, updates); err != nil {
			return err
		}
		after, err = c.jobs.GetByID(dbc, jobID)
		return err
	})
	if err != nil {
		return err
	}
	if after != nil {
		c.notify.JobChanged(ctx, after, message)
	}
	return nil
}

// Reset is the operator escape hatch: clears plan, generated and staged-for
// -review output, suggestions and the error history, and forces the job back
// to pending_planning. Terminal jobs are rejected; an archived job has to be
// brought back before it can be reset. Jobs with an approved group are also
// rejected: approval already copied items into the canonical tables under
// index-derived IDs, and regenerating over those indexes would silently
// collide with them.
func (c *Controller) Reset(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error) {
	var after *types.GenerationJob
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.WithTx(ctx, tx)
		job, err := c.jobs.LockForUpdate(dbc, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return ErrNotFound
		}
		if Terminal(job.Status) {
			return fmt.Errorf("%w: cannot reset %s job", ErrInvalidTransition, job.Status)
		}
		suggestions, err := job.Suggestions()
		if err != nil {
			return err
		}
		for _, g := range suggestions {
			if g.Approved {
				return fmt.Errorf("%w: cannot reset job with approved content", ErrInvalidTransition)
			}
		}
		updates := map[string]interface{}{
			"status":                     StatusPendingPlanning,
			"suggested_plan":             nil,
			"generated_content":          nil,
			"final_awaiting_review_data": nil,
			"assignment_suggestions":     nil,
			"errors":                     nil,
			"batch_size":                 0,
			"total_batches":              0,
			"completed_batches":          0,
			"failed_batches":             0,
			"failed_batch_numbers":       nil,
			"approved_topic":             "",
			"approved_chapter":           "",
		}
		if err := c.jobs.UpdateFields(dbc, jobID, updates); err != nil {
			return err
		}
		after, err = c.jobs.GetByID(dbc, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("Job reset", "job_id", jobID)
	c.notify.JobChanged(ctx, after, "reset to pending_planning")
	return after, nil
}

// Archive soft-hides a job: status flips, nothing staged or canonical is
// deleted, and default queue listings stop returning it. Legal from any
// non-terminal status; in-flight batch workers discover the flip when their
// ReportBatch re-reads status and discard their results.
func (c *Controller) Archive(ctx context.Context, jobID uuid.UUID) (*types.GenerationJob, error) {
	dbc := dbctx.New(ctx)
	applied, err := c.jobs.UpdateFieldsIfStatus(dbc, jobID, ActiveStatuses(), map[string]interface{}{
		"status": StatusArchived,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		job, getErr := c.jobs.GetByID(dbc, jobID)
		if getErr != nil {
			return nil, getErr
		}
		if job == nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: cannot archive %s job", ErrInvalidTransition, job.Status)
	}
	job, err := c.jobs.GetByID(dbc, jobID)
	if err != nil {
		return nil, err
	}
	c.log.Info("Job archived", "job_id", jobID)
	c.notify.JobChanged(ctx, job, "archived")
	return job, nil
}

// MarkFailed records an unrecoverable stage failure: the error is appended
// to the visible history and the job drops into the error status, from which
// only an operator reset leads out.
func (c *Controller) MarkFailed(ctx context.Context, jobID uuid.UUID, stage string, cause error) error {
	dbc := dbctx.New(ctx)
	if err := c.jobs.AppendError(dbc, jobID, fmt.Sprintf("%s: %v", stage, cause)); err != nil {
		return err
	}
	applied, err := c.jobs.UpdateFieldsIfStatus(dbc, jobID, ActiveStatuses(), map[string]interface{}{
		"status": StatusError,
	})
	if err != nil {
		return err
	}
	if applied {
		if job, getErr := c.jobs.GetByID(dbc, jobID); getErr == nil && job != nil {
			c.notify.JobChanged(ctx, job, "stage failed: "+stage)
		}
	}
	return nil
}

// flattenForReview builds the review bundle from completed batches, ordered
// by batch number. Marrow jobs put their extracted questions ahead of the
// newly generated ones so extraction output keeps stable indexes across
// generation retries.
func flattenForReview(job *types.GenerationJob, batches []types.BatchResult) (*types.ReviewBundle, error) {
	bundle := &types.ReviewBundle{}
	if job.Pipeline == types.PipelineMarrow {
		staged, err := job.Staged()
		if err != nil {
			return nil, err
		}
		if staged != nil {
			bundle.Mcqs = append(bundle.Mcqs, staged.ExtractedMcqs...)
		}
	}
	sorted := make([]types.BatchResult, len(batches))
	copy(sorted, batches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].BatchNumber < sorted[j].BatchNumber })
	for _, b := range sorted {
		bundle.Mcqs = append(bundle.Mcqs, b.Mcqs...)
		bundle.Flashcards = append(bundle.Flashcards, b.Flashcards...)
	}
	return bundle, nil
}
