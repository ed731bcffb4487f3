package ogi

// StatusKind discriminates the per-sub-query state machine value.
type StatusKind string

const (
	// StatusPending — enqueued, not yet handed to a dispatcher.
	StatusPending StatusKind = "pending"
	// StatusSubmitted — drained by TakePending; JobID initially equals the
	// query ID and may later be corrected via UpdateStatus once the external
	// dispatcher learns the venue's real job identifier.
	StatusSubmitted StatusKind = "submitted"
	// StatusComplete — terminal, success.
	StatusComplete StatusKind = "complete"
	// StatusFailed — terminal, failure.
	StatusFailed StatusKind = "failed"
	// StatusTimeout — terminal, no result arrived before the deadline.
	StatusTimeout StatusKind = "timeout"
)

// Status is one per-sub-query state machine value. Only the fields relevant
// to the Kind are populated; use the constructors below rather than building
// Status values by hand.
type Status struct {
	Kind StatusKind `json:"kind"`
	// JobID is set for StatusSubmitted.
	JobID string `json:"job_id,omitempty"`
	// ResultText and DurationMS are set for StatusComplete.
	ResultText string `json:"result_text,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	// ErrorMessage is set for StatusFailed.
	ErrorMessage string `json:"error_message,omitempty"`
}

// PendingStatus returns the initial enqueued state.
func PendingStatus() Status { return Status{Kind: StatusPending} }

// SubmittedStatus marks a query as handed off under the given venue job ID.
func SubmittedStatus(jobID string) Status {
	return Status{Kind: StatusSubmitted, JobID: jobID}
}

// CompleteStatus marks a query as successfully finished.
func CompleteStatus(resultText string, durationMS int64) Status {
	return Status{Kind: StatusComplete, ResultText: resultText, DurationMS: durationMS}
}

// FailedStatus marks a query as finished with an error.
func FailedStatus(errorMessage string) Status {
	return Status{Kind: StatusFailed, ErrorMessage: errorMessage}
}

// TimeoutStatus marks a query as abandoned at the collection deadline.
func TimeoutStatus() Status { return Status{Kind: StatusTimeout} }

// Terminal reports whether no further transition is expected for this status.
// Collect's own logic never leaves a terminal state; only UpdateStatus or a
// duplicate RecordResult can, by documented caller latitude.
func (s Status) Terminal() bool {
	switch s.Kind {
	case StatusComplete, StatusFailed, StatusTimeout:
		return true
	default:
		return false
	}
}
