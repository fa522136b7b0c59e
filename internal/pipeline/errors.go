package pipeline

import "errors"

var (
	// ErrNotFound means the job (or a referenced entity) does not exist.
	ErrNotFound = errors.New("job not found")
	// ErrConflict means a conditional update lost a race: the job's status
	// changed under the caller, who must re-read before retrying.
	ErrConflict = errors.New("job status changed concurrently")
	// ErrInvalidTransition means the requested move is not in the
	// transition table for the job's current status.
	ErrInvalidTransition = errors.New("illegal status transition")
)
