package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repos "github.com/quizforge/quizforge-backend/internal/data/repos/content"
	"github.com/quizforge/quizforge-backend/internal/data/repos/testutil"
	types "github.com/quizforge/quizforge-backend/internal/domain/content"
	"github.com/quizforge/quizforge-backend/internal/pipeline"
	"github.com/quizforge/quizforge-backend/internal/pipeline/assign"
	"github.com/quizforge/quizforge-backend/internal/pkg/dbctx"
)

// stubAIClient lets a test script the assignment proposal; the other stages
// are never called by the assignment service.
type stubAIClient struct {
	suggest func(ctx context.Context, req AssignmentRequest) ([]assign.ProposedGroup, error)
}

func (s *stubAIClient) PlanContent(context.Context, string, int) (*PlanSuggestion, error) {
	return nil, fmt.Errorf("not used")
}

func (s *stubAIClient) GenerateBatch(context.Context, BatchRequest) (*types.BatchResult, error) {
	return nil, fmt.Errorf("not used")
}

func (s *stubAIClient) ExtractContent(context.Context, string) (*ExtractionResult, error) {
	return nil, fmt.Errorf("not used")
}

func (s *stubAIClient) SuggestAssignment(ctx context.Context, req AssignmentRequest) ([]assign.ProposedGroup, error) {
	return s.suggest(ctx, req)
}

func TestSuggestPreservesApprovalCommittedDuringModelCall(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	jobs := repos.NewGenerationJobRepo(db, log)
	taxonomy := repos.NewTaxonomyRepo(db, log)
	ctx := context.Background()

	existingGroupID := uuid.NewString()
	job := &types.GenerationJob{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Pipeline: types.PipelineGeneral,
		Status:   pipeline.StatusPendingAssignment,
		FinalAwaitingReviewData: types.MustJSON(types.ReviewBundle{
			Mcqs: []types.Mcq{
				{Question: "q0", Options: []string{"a", "b"}},
				{Question: "q1", Options: []string{"a", "b"}},
			},
		}),
		AssignmentSuggestions: types.MustJSON([]types.AssignmentSuggestion{{
			GroupID:     existingGroupID,
			TopicName:   "Pediatrics",
			ChapterName: "Neonatology",
			McqIndexes:  []int{0, 1},
		}}),
	}
	_, err := jobs.Create(dbctx.New(ctx), job)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec("DELETE FROM generation_job WHERE id = ?", job.ID)
	})

	ai := &stubAIClient{suggest: func(ctx context.Context, _ AssignmentRequest) ([]assign.ProposedGroup, error) {
		// An approval commits while the model call is in flight. The append
		// afterwards must build on this state, not the pre-call snapshot.
		approved := []types.AssignmentSuggestion{{
			GroupID:     existingGroupID,
			TopicName:   "Pediatrics",
			ChapterName: "Neonatology",
			McqIndexes:  []int{0, 1},
			Approved:    true,
		}}
		require.NoError(t, jobs.UpdateFields(dbctx.New(ctx), job.ID, map[string]interface{}{
			"assignment_suggestions": types.MustJSON(approved),
			"approved_topic":         "Pediatrics",
			"approved_chapter":       "Neonatology",
		}))
		return []assign.ProposedGroup{{
			TopicName:   "Cardiology",
			ChapterName: "Arrhythmias",
			McqIndexes:  []int{0, 1},
		}}, nil
	}}

	svc := NewAssignmentService(db, log, jobs, taxonomy, ai)
	after, err := svc.Suggest(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, after)

	suggestions, err := after.Suggestions()
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.True(t, suggestions[0].Approved, "approval flag set mid-call must survive the append")
	assert.Equal(t, existingGroupID, suggestions[0].GroupID)
	assert.Equal(t, "Cardiology", suggestions[1].TopicName)
	assert.NotEqual(t, suggestions[0].GroupID, suggestions[1].GroupID)
	assert.Equal(t, "Pediatrics", after.ApprovedTopic, "approved topic set mid-call must survive")
}

func TestSuggestRejectsJobOutsidePendingAssignment(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	jobs := repos.NewGenerationJobRepo(db, log)
	taxonomy := repos.NewTaxonomyRepo(db, log)
	ctx := context.Background()

	job := &types.GenerationJob{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: pipeline.StatusGeneratingContent,
	}
	_, err := jobs.Create(dbctx.New(ctx), job)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec("DELETE FROM generation_job WHERE id = ?", job.ID)
	})

	svc := NewAssignmentService(db, log, jobs, taxonomy, &stubAIClient{})
	_, err = svc.Suggest(ctx, job.ID)
	require.Error(t, err)
}
