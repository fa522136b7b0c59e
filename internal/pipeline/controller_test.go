package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	repos "github.com/quizforge/quizforge-backend/internal/data/repos/content"
	"github.com/quizforge/quizforge-backend/internal/data/repos/testutil"
	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) JobChanged(_ context.Context, _ *types.GenerationJob, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func newTestController(t *testing.T) (*Controller, repos.GenerationJobRepo, *gorm.DB, *recordingNotifier) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	jobs := repos.NewGenerationJobRepo(db, log)
	notifier := &recordingNotifier{}
	return NewController(db, log, jobs, notifier), jobs, db, notifier
}

func seedJob(t *testing.T, db *gorm.DB, jobs repos.GenerationJobRepo, mutate func(*types.GenerationJob)) *types.GenerationJob {
	t.Helper()
	job := &types.GenerationJob{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Pipeline: types.PipelineGeneral,
		Title:    "seeded",
		Status:   StatusGeneratingContent,
	}
	if mutate != nil {
		mutate(job)
	}
	_, err := jobs.Create(dbctx.New(context.Background()), job)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec("DELETE FROM generation_job WHERE id = ?", job.ID)
	})
	return job
}

func batchOf(n, mcqs int) *types.BatchResult {
	out := &types.BatchResult{BatchNumber: n}
	for i := 0; i < mcqs; i++ {
		out.Mcqs = append(out.Mcqs, types.Mcq{
			Question:     fmt.Sprintf("b%d q%d", n, i),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: 0,
		})
	}
	return out
}

func TestReportBatchFinalizesIntoPendingAssignment(t *testing.T) {
	c, jobs, db, _ := newTestController(t)
	ctx := context.Background()
	job := seedJob(t, db, jobs, func(j *types.GenerationJob) {
		j.TotalBatches = 2
	})

	// out of order on purpose
	require.NoError(t, c.ReportBatch(ctx, job.ID, batchOf(2, 1), nil))
	require.NoError(t, c.ReportBatch(ctx, job.ID, batchOf(1, 2), nil))

	after, err := jobs.GetByID(dbctx.New(ctx), job.ID)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, StatusPendingAssignment, after.Status)
	assert.Equal(t, 2, after.CompletedBatches)
	assert.Equal(t, 0, after.FailedBatches)

	bundle, err := after.Review()
	require.NoError(t, err)
	require.NotNil(t, bundle)
	require.Len(t, bundle.Mcqs, 3)
	assert.Equal(t, "b1 q0", bundle.Mcqs[0].Question, "bundle is ordered by batch number, not arrival")
	assert.Equal(t, "b2 q0", bundle.Mcqs[2].Question)
}

func TestReportBatchDropsDuplicateDelivery(t *testing.T) {
	c, jobs, db, _ := newTestController(t)
	ctx := context.Background()
	job := seedJob(t, db, jobs, func(j *types.GenerationJob) {
		j.TotalBatches = 2
	})

	require.NoError(t, c.ReportBatch(ctx, job.ID, batchOf(1, 1), nil))
	require.NoError(t, c.ReportBatch(ctx, job.ID, batchOf(1, 1), nil))

	after, err := jobs.GetByID(dbctx.New(ctx), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusGeneratingContent, after.Status, "duplicate must not count toward finalization")
	assert.Equal(t, 1, after.CompletedBatches)
}

func TestReportBatchPartialFailure(t *testing.T) {
	c, jobs, db, _ := newTestController(t)
	ctx := context.Background()
	job := seedJob(t, db, jobs, func(j *types.GenerationJob) {
		j.TotalBatches = 3
	})

	require.NoError(t, c.ReportBatch(ctx, job.ID, batchOf(1, 1), nil))
	require.NoError(t, c.ReportBatch(ctx, job.ID, &types.BatchResult{BatchNumber: 2}, fmt.Errorf("model timeout")))
	require.NoError(t, c.ReportBatch(ctx, job.ID, batchOf(3, 1), nil))

	after, err := jobs.GetByID(dbctx.New(ctx), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusGenerationFailedPart, after.Status)
	assert.Equal(t, 3, after.CompletedBatches, "failed batches still count as reported")
	assert.Equal(t, 1, after.FailedBatches)

	errs, err := after.ErrorList()
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "batch 2")
}

func TestReportBatchAllFailedLandsInError(t *testing.T) {
	c, jobs, db, _ := newTestController(t)
	ctx := context.Background()
	job := seedJob(t, db, jobs, func(j *types.GenerationJob) {
		j.TotalBatches = 1
	})

	require.NoError(t, c.ReportBatch(ctx, job.ID, &types.BatchResult{BatchNumber: 1}, fmt.Errorf("boom")))

	after, err := jobs.GetByID(dbctx.New(ctx), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, after.Status)
	errs, err := after.ErrorList()
	require.NoError(t, err)
	assert.Len(t, errs, 2, "batch error plus the all-failed summary")
}

func TestReportBatchDropsDuplicateFailure(t *testing.T) {
	c, jobs, db, _ := newTestController(t)
	ctx := context.Background()
	job := seedJob(t, db, jobs, func(j *types.GenerationJob) {
		j.TotalBatches = 2
	})

	require.NoError(t, c.ReportBatch(ctx, job.ID, &types.BatchResult{BatchNumber: 1}, fmt.Errorf("model timeout")))
	require.NoError(t, c.ReportBatch(ctx, job.ID, &types.BatchResult{BatchNumber: 1}, fmt.Errorf("model timeout")))

	after, err := jobs.GetByID(dbctx.New(ctx), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusGeneratingContent, after.Status, "redelivered failure must not count toward finalization")
	assert.Equal(t, 1, after.CompletedBatches)
	assert.Equal(t, 1, after.FailedBatches)

	errs, err := after.ErrorList()
	require.NoError(t, err)
	assert.Len(t, errs, 1, "redelivered failure must not append a second error")
}

func TestReportBatchDiscardedAfterArchive(t *testing.T) {
	c, jobs, db, _ := newTestController(t)
	ctx := context.Background()
	job := seedJob(t, db, jobs, func(j *types.GenerationJob) {
		j.TotalBatches = 2
	})

	_, err := c.Archive(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, c.ReportBatch(ctx, job.ID, batchOf(1, 1), nil))

	after, err := jobs.GetByID(dbctx.New(ctx), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, after.Status)
	assert.Equal(t, 0, after.CompletedBatches, "late result must be discarded, not recorded")
	assert.Empty(t, after.GeneratedContent)
}

func TestTransitionConflictReportsFoundStatus(t *testing.T) {
	c, jobs, db, _ := newTestController(t)
	ctx := context.Background()
	job := seedJob(t, db, jobs, func(j *types.GenerationJob) {
		j.Status = StatusPendingPlanning
	})

	_, err := c.Transition(ctx, job.ID, []string{StatusPendingGeneration}, StatusGeneratingContent, nil)
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), StatusPendingPlanning)
}

func TestResetClearsDerivedState(t *testing.T) {
	c, jobs, db, _ := newTestController(t)
	ctx := context.Background()
	job := seedJob(t, db, jobs, func(j *types.GenerationJob) {
		j.Status = StatusGenerationFailedPart
		j.TotalBatches = 3
		j.CompletedBatches = 3
		j.FailedBatches = 1
		j.GeneratedContent = types.MustJSON([]types.BatchResult{*batchOf(1, 1)})
		j.Errors = types.MustJSON([]string{"batch 2: boom"})
		j.ApprovedTopic = "Pediatrics"
	})

	after, err := c.Reset(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPlanning, after.Status)
	assert.Zero(t, after.CompletedBatches)
	assert.Zero(t, after.TotalBatches)
	assert.Empty(t, after.GeneratedContent)
	assert.Empty(t, after.Errors)
	assert.Empty(t, after.ApprovedTopic)
}

func TestResetRefusedOnceGroupApproved(t *testing.T) {
	c, jobs, db, _ := newTestController(t)
	ctx := context.Background()
	job := seedJob(t, db, jobs, func(j *types.GenerationJob) {
		j.Status = StatusPendingAssignment
		j.FinalAwaitingReviewData = types.MustJSON(types.ReviewBundle{
			Mcqs: []types.Mcq{{Question: "q0", Options: []string{"a", "b"}}},
		})
		j.AssignmentSuggestions = types.MustJSON([]types.AssignmentSuggestion{
			{GroupID: uuid.NewString(), TopicName: "Pediatrics", ChapterName: "Neonatology", McqIndexes: []int{0}, Approved: true},
		})
	})

	_, err := c.Reset(ctx, job.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	after, getErr := jobs.GetByID(dbctx.New(ctx), job.ID)
	require.NoError(t, getErr)
	assert.Equal(t, StatusPendingAssignment, after.Status, "refused reset must leave the job untouched")
	assert.NotEmpty(t, after.AssignmentSuggestions)
}

func TestFlattenForReviewMarrowPutsExtractedFirst(t *testing.T) {
	job := &types.GenerationJob{
		Pipeline: types.PipelineMarrow,
		StagedContent: types.MustJSON(types.StagedExtraction{
			ExtractedMcqs: []types.Mcq{{Question: "extracted", Options: []string{"a", "b"}}},
		}),
	}
	batches := []types.BatchResult{
		{BatchNumber: 2, Mcqs: []types.Mcq{{Question: "gen2", Options: []string{"a", "b"}}}},
		{BatchNumber: 1, Mcqs: []types.Mcq{{Question: "gen1", Options: []string{"a", "b"}}}},
	}

	bundle, err := flattenForReview(job, batches)
	require.NoError(t, err)
	require.Len(t, bundle.Mcqs, 3)
	assert.Equal(t, "extracted", bundle.Mcqs[0].Question)
	assert.Equal(t, "gen1", bundle.Mcqs[1].Question)
	assert.Equal(t, "gen2", bundle.Mcqs[2].Question)
}
