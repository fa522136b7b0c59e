package pipeline

// Job statuses form a closed set. A job has exactly one status at a time and
// every advance goes through the job repo's conditional write, so two
// operators racing on the same stage cannot both win.
const (
	StatusPendingUpload        = "pending_upload"
	StatusProcessingOCR        = "processing_ocr"
	StatusPendingPlanning      = "pending_planning"
	StatusPendingGeneration    = "pending_generation"
	StatusGeneratingContent    = "generating_content"
	StatusGenerationFailedPart = "generation_failed_partially"
	StatusPendingAssignment    = "pending_assignment"
	StatusCompleted            = "completed"
	StatusError                = "error"
	StatusArchived             = "archived"
)

// transitions is the legality table. Archive is handled separately: it is
// legal from any non-terminal status.
var transitions = map[string][]string{
	StatusPendingUpload:        {StatusProcessingOCR, StatusPendingPlanning, StatusError},
	StatusProcessingOCR:        {StatusPendingPlanning, StatusError},
	StatusPendingPlanning:      {StatusPendingGeneration, StatusError},
	StatusPendingGeneration:    {StatusGeneratingContent, StatusError},
	StatusGeneratingContent:    {StatusPendingAssignment, StatusGenerationFailedPart, StatusError},
	StatusGenerationFailedPart: {StatusPendingGeneration, StatusError},
	StatusPendingAssignment:    {StatusPendingAssignment, StatusCompleted, StatusError},
	StatusError:                {StatusPendingPlanning},
	StatusCompleted:            {},
	StatusArchived:             {},
}

func KnownStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

func Terminal(s string) bool {
	return s == StatusCompleted || s == StatusArchived
}

// CanTransition reports whether moving from -> to is legal. The self-loop on
// pending_assignment covers resolver re-runs appending suggestion batches.
func CanTransition(from, to string) bool {
	if to == StatusArchived {
		return KnownStatus(from) && !Terminal(from)
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActiveStatuses are the statuses shown in default operator queue listings;
// archived jobs are excluded unless asked for explicitly.
func ActiveStatuses() []string {
	return []string{
		StatusPendingUpload,
		StatusProcessingOCR,
		StatusPendingPlanning,
		StatusPendingGeneration,
		StatusGeneratingContent,
		StatusGenerationFailedPart,
		StatusPendingAssignment,
		StatusError,
	}
}
