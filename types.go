package ogi

// SubQuery is an immutable description of one unit of work derived from a
// larger task. IDs must be unique within a batch; the Builder guarantees
// this, callers constructing SubQueries by hand must guarantee it themselves.
type SubQuery struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
	// Model overrides the venue's default model when non-empty.
	Model string `json:"model,omitempty"`
	// MaxTokens caps the venue's output when positive.
	MaxTokens int `json:"max_tokens,omitempty"`
	// FragmentID references the document fragment this sub-query operates on.
	FragmentID string `json:"fragment_id,omitempty"`
}

// Fragment is a piece of a larger document paired with its identifier,
// used as Builder input.
type Fragment struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Result is the outcome record for one sub-query, produced exclusively by
// the external dispatcher and consumed by RecordResult.
type Result struct {
	QueryID string `json:"query_id"`
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	// DurationMS is the venue-measured execution time in milliseconds.
	DurationMS int64 `json:"duration_ms"`
	// Venue tags which execution backend produced this result.
	Venue string `json:"venue,omitempty"`
}

// CollectResult is the verdict returned by Collect and CollectSync.
type CollectResult struct {
	// Results holds every recorded result, in no guaranteed order.
	Results []Result `json:"results"`
	// TimedOut lists the IDs whose status was still non-terminal when
	// collection stopped, sorted for determinism.
	TimedOut []string `json:"timed_out"`
	// QuorumMet reports whether the quorum policy was satisfied at the
	// moment collection stopped.
	QuorumMet bool `json:"quorum_met"`
	// DurationMS is the wall-clock time spent collecting. Always 0 for
	// CollectSync, which measures nothing.
	DurationMS int64 `json:"duration_ms"`
}
