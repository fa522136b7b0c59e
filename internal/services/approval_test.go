package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	types "github.com/quizforge/quizforge-backend/internal/domain/content"
)

func TestApprovedCoverage(t *testing.T) {
	bundle := &types.ReviewBundle{
		Mcqs:       []types.Mcq{{}, {}, {}},
		Flashcards: []types.Flashcard{{}},
	}

	partial := []types.AssignmentSuggestion{
		{Approved: true, McqIndexes: []int{0, 1}},
		{Approved: false, McqIndexes: []int{2}, FlashcardIndexes: []int{0}},
	}
	assert.False(t, approvedCoverage(bundle, partial), "unapproved groups do not count")

	partial[1].Approved = true
	assert.True(t, approvedCoverage(bundle, partial))

	overlapping := []types.AssignmentSuggestion{
		{Approved: true, McqIndexes: []int{0, 1, 2}, FlashcardIndexes: []int{0}},
		{Approved: true, McqIndexes: []int{1, 2}},
	}
	assert.True(t, approvedCoverage(bundle, overlapping), "coverage is a union check across batches")

	assert.False(t, approvedCoverage(nil, partial))
}
