package pipeline

import "testing"

func TestCanTransition(t *testing.T) {
	legal := [][2]string{
		{StatusPendingUpload, StatusPendingPlanning},
		{StatusProcessingOCR, StatusPendingPlanning},
		{StatusPendingPlanning, StatusPendingGeneration},
		{StatusPendingGeneration, StatusGeneratingContent},
		{StatusGeneratingContent, StatusPendingAssignment},
		{StatusGeneratingContent, StatusGenerationFailedPart},
		{StatusGenerationFailedPart, StatusPendingGeneration},
		{StatusPendingAssignment, StatusPendingAssignment},
		{StatusPendingAssignment, StatusCompleted},
		{StatusError, StatusPendingPlanning},
		{StatusError, StatusArchived},
		{StatusPendingAssignment, StatusArchived},
		{StatusGeneratingContent, StatusArchived},
	}
	for _, c := range legal {
		if !CanTransition(c[0], c[1]) {
			t.Errorf("expected %s -> %s to be legal", c[0], c[1])
		}
	}

	illegal := [][2]string{
		{StatusGenerationFailedPart, StatusPendingAssignment},
		{StatusCompleted, StatusArchived},
		{StatusArchived, StatusPendingPlanning},
		{StatusCompleted, StatusPendingPlanning},
		{StatusPendingPlanning, StatusPendingAssignment},
		{StatusError, StatusPendingGeneration},
		{"bogus", StatusArchived},
	}
	for _, c := range illegal {
		if CanTransition(c[0], c[1]) {
			t.Errorf("expected %s -> %s to be illegal", c[0], c[1])
		}
	}
}

func TestTerminal(t *testing.T) {
	if !Terminal(StatusCompleted) || !Terminal(StatusArchived) {
		t.Fatal("completed and archived are terminal")
	}
	if Terminal(StatusError) {
		t.Fatal("error is recoverable, not terminal")
	}
}

func TestActiveStatusesExcludeTerminal(t *testing.T) {
	for _, s := range ActiveStatuses() {
		if Terminal(s) {
			t.Errorf("active listing must not include terminal status %s", s)
		}
	}
}
