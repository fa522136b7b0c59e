package assign

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/quizforge/quizforge-backend/internal/domain/content"
)

func bundleOf(mcqs, cards int) *types.ReviewBundle {
	b := &types.ReviewBundle{}
	for i := 0; i < mcqs; i++ {
		b.Mcqs = append(b.Mcqs, types.Mcq{Question: "q", Options: []string{"a", "b"}})
	}
	for i := 0; i < cards; i++ {
		b.Flashcards = append(b.Flashcards, types.Flashcard{Front: "f", Back: "b"})
	}
	return b
}

func TestResolvePartitionsExactly(t *testing.T) {
	jobID := uuid.New()
	bundle := bundleOf(5, 3)
	snapshot := TaxonomySnapshot{
		Topics:   map[string]string{"neonatology": "Neonatology"},
		Chapters: map[string]string{"neonatal_jaundice": "Neonatal Jaundice"},
	}
	proposed := []ProposedGroup{
		{TopicName: "Neonatology", ChapterName: "Neonatal Jaundice", McqIndexes: []int{0, 2}},
		// duplicate of 2 and out-of-range 9 must be repaired, not rejected
		{TopicName: "Neonatology", ChapterName: "Sepsis", McqIndexes: []int{2, 3, 9}, FlashcardIndexes: []int{1}},
	}

	got, err := Resolve(jobID, bundle, snapshot, proposed, "Pediatrics", "Misc", 0)
	require.NoError(t, err)
	require.NoError(t, Verify(bundle, got))

	assert.Equal(t, []int{0, 2}, got[0].McqIndexes)
	assert.False(t, got[0].IsNewChapter, "existing chapter matched by normalized name")
	assert.Equal(t, []int{3}, got[1].McqIndexes)
	assert.True(t, got[1].IsNewChapter)

	// leftovers (mcq 1, 4; cards 0, 2) land in the fallback group
	last := got[len(got)-1]
	assert.Equal(t, "Pediatrics", last.TopicName)
	assert.Equal(t, []int{1, 4}, last.McqIndexes)
	assert.Equal(t, []int{0, 2}, last.FlashcardIndexes)
}

func TestResolveEmptyProposalStillCoversEverything(t *testing.T) {
	bundle := bundleOf(2, 2)
	got, err := Resolve(uuid.New(), bundle, TaxonomySnapshot{}, nil, "", "", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NoError(t, Verify(bundle, got))
	assert.Equal(t, "Uncategorized", got[0].TopicName)
	assert.True(t, got[0].IsNewChapter)
}

func TestResolveEmptyBundleErrors(t *testing.T) {
	_, err := Resolve(uuid.New(), &types.ReviewBundle{}, TaxonomySnapshot{}, nil, "", "", 0)
	assert.Error(t, err)
}

func TestResolveGroupIDsAreDeterministicAndAdditive(t *testing.T) {
	jobID := uuid.New()
	bundle := bundleOf(2, 0)

	first, err := Resolve(jobID, bundle, TaxonomySnapshot{}, nil, "T", "C", 0)
	require.NoError(t, err)
	again, err := Resolve(jobID, bundle, TaxonomySnapshot{}, nil, "T", "C", 0)
	require.NoError(t, err)
	assert.Equal(t, first[0].GroupID, again[0].GroupID, "same ordinal, same ID")

	appended, err := Resolve(jobID, bundle, TaxonomySnapshot{}, nil, "T", "C", len(first))
	require.NoError(t, err)
	assert.NotEqual(t, first[0].GroupID, appended[0].GroupID, "appended batch gets fresh IDs")
}

func TestVerifyCatchesViolations(t *testing.T) {
	bundle := bundleOf(2, 0)
	assert.Error(t, Verify(bundle, []types.AssignmentSuggestion{{McqIndexes: []int{0}}}), "uncovered index")
	assert.Error(t, Verify(bundle, []types.AssignmentSuggestion{{McqIndexes: []int{0, 1}}, {McqIndexes: []int{1}}}), "duplicate index")
	assert.Error(t, Verify(bundle, []types.AssignmentSuggestion{{McqIndexes: []int{0, 1, 5}}}), "out of range index")
}
