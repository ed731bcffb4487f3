package ogi

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyCollecting is returned by Collect when another Collect call is
// already consuming the result inbox. The first call is unaffected.
var ErrAlreadyCollecting = errors.New("ogi: collect already in progress")

// Scheduler coordinates one batch of sub-queries: enqueue, hand off via
// TakePending, and collect results pushed back through Sender handles.
//
// The status map, results map, and pending queue are guarded by a mutex so
// Enqueue/UpdateStatus/RecordResult/Reset may be called from any goroutine.
// The result inbox is a single exclusively-owned resource during a Collect
// call: a busy flag makes a second concurrent Collect fail fast with
// ErrAlreadyCollecting rather than silently interleave reads.
type Scheduler struct {
	logger    *slog.Logger
	inboxSize int

	mu       sync.Mutex
	statuses map[string]Status
	results  map[string]Result
	pending  []SubQuery

	inbox      chan Result
	closeOnce  sync.Once
	collecting atomic.Bool
}

// NewScheduler creates a Scheduler ready for one batch. Reset it before
// reusing it for an unrelated batch, or create a fresh instance.
func NewScheduler(opts ...Option) *Scheduler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Scheduler{
		logger:    o.logger,
		inboxSize: o.inboxSize,
		statuses:  make(map[string]Status),
		results:   make(map[string]Result),
		inbox:     make(chan Result, o.inboxSize),
	}
}

// Enqueue adds queries with status Pending. Duplicate IDs are not rejected —
// callers must guarantee uniqueness; duplicates silently collapse onto one
// status-map slot.
func (s *Scheduler) Enqueue(queries ...SubQuery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range queries {
		s.statuses[q.ID] = PendingStatus()
		s.pending = append(s.pending, q)
	}
	s.logger.Debug("ogi: enqueued", "count", len(queries), "total", len(s.statuses))
}

// TakePending atomically drains and returns the pending list exactly once;
// a second call without an intervening Enqueue returns nil. Every drained
// query transitions Pending → Submitted with its job ID set to the query ID
// until the dispatcher corrects it via UpdateStatus.
func (s *Scheduler) TakePending() []SubQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.pending
	s.pending = nil
	for _, q := range drained {
		s.statuses[q.ID] = SubmittedStatus(q.ID)
	}
	return drained
}

// UpdateStatus overrides the status for id, e.g. to record the real venue
// job ID once known. No state-machine validity checking is performed — the
// only enforced rule is last write observed wins.
func (s *Scheduler) UpdateStatus(id string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
}

// RecordResult applies a terminal transition for res.QueryID and stores the
// result. Duplicate deliveries overwrite (last-write-wins), and an ID that
// was never enqueued is auto-registered, silently growing TotalCount — both
// are documented latitude, not accidents.
func (s *Scheduler) RecordResult(res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res.Success {
		s.statuses[res.QueryID] = CompleteStatus(res.Content, res.DurationMS)
	} else {
		s.statuses[res.QueryID] = FailedStatus(res.Error)
	}
	s.results[res.QueryID] = res
	s.logger.Debug("ogi: result recorded",
		"query_id", res.QueryID,
		"success", res.Success,
		"venue", res.Venue,
		"duration_ms", res.DurationMS,
	)
}

// StatusSnapshot returns a read-only copy of the status map for diagnostics.
func (s *Scheduler) StatusSnapshot() map[string]Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]Status, len(s.statuses))
	for id, st := range s.statuses {
		snapshot[id] = st
	}
	return snapshot
}

// Results returns all recorded results in no guaranteed order.
func (s *Scheduler) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultsLocked()
}

func (s *Scheduler) resultsLocked() []Result {
	out := make([]Result, 0, len(s.results))
	for _, res := range s.results {
		out = append(out, res)
	}
	return out
}

// CompletedCount returns the number of queries in a terminal status.
func (s *Scheduler) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.statuses {
		if st.Terminal() {
			n++
		}
	}
	return n
}

// SuccessCount returns the number of queries in status Complete.
func (s *Scheduler) SuccessCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successCountLocked()
}

func (s *Scheduler) successCountLocked() int {
	n := 0
	for _, st := range s.statuses {
		if st.Kind == StatusComplete {
			n++
		}
	}
	return n
}

// TotalCount returns the number of tracked queries.
func (s *Scheduler) TotalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.statuses)
}

// IsComplete reports whether every tracked query is terminal. An empty
// scheduler is never complete.
func (s *Scheduler) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return false
	}
	for _, st := range s.statuses {
		if !st.Terminal() {
			return false
		}
	}
	return true
}

// Sender returns a producer handle for pushing results into the inbox.
// Any number of handles may be taken and used concurrently.
func (s *Scheduler) Sender() *Sender {
	return &Sender{scheduler: s}
}

// Collect consumes the inbox until the quorum is met, the inbox is closed,
// a best-effort polling window stalls, ctx is cancelled, or the total
// timeout elapses — whichever comes first. Every ID still non-terminal when
// collection stops is forced to Timeout.
//
// The call returns no later than policy.Total after it started regardless
// of outstanding producers. Results that arrive after it returns stay
// buffered in the inbox and surface in a subsequent Collect call; they are
// not lost, but they are not in the CollectResult just returned.
func (s *Scheduler) Collect(ctx context.Context, policy TimeoutPolicy, quorum Quorum) (CollectResult, error) {
	if !s.collecting.CompareAndSwap(false, true) {
		return CollectResult{}, ErrAlreadyCollecting
	}
	defer s.collecting.Store(false)

	start := time.Now()
	deadline := start.Add(policy.Total)

loop:
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if quorum.IsMet(s.SuccessCount(), s.TotalCount()) {
			break
		}

		wait := remaining
		if policy.PerQuery > 0 && policy.PerQuery < wait {
			wait = policy.PerQuery
		}
		timer := time.NewTimer(wait)
		select {
		case res, ok := <-s.inbox:
			timer.Stop()
			if !ok {
				// Inbox closed: no producer will ever send again.
				break loop
			}
			s.RecordResult(res)
		case <-ctx.Done():
			timer.Stop()
			break loop
		case <-timer.C:
			// The polling window elapsed with no arrival. Best-effort
			// quorums treat a stalled window as "stop waiting"; stricter
			// quorums loop back to re-check the deadline and wait again.
			if quorum.IsBestEffort() {
				break loop
			}
		}
	}

	timedOut := s.timeoutOutstanding()
	elapsed := time.Since(start)

	s.mu.Lock()
	cr := CollectResult{
		Results:    s.resultsLocked(),
		TimedOut:   timedOut,
		QuorumMet:  quorum.IsMet(s.successCountLocked(), len(s.statuses)),
		DurationMS: elapsed.Milliseconds(),
	}
	s.mu.Unlock()

	s.logger.Info("ogi: collection finished",
		"results", len(cr.Results),
		"timed_out", len(cr.TimedOut),
		"quorum_met", cr.QuorumMet,
		"duration_ms", cr.DurationMS,
	)
	return cr, nil
}

// CollectSync records the supplied out-of-band results (e.g. retrieved by
// polling an external store rather than pushed through the inbox) and
// returns a verdict. Unlike Collect, IDs still non-terminal afterwards are
// reported in TimedOut without their status being mutated to Timeout — an
// intentional asymmetry kept for callers that poll across multiple rounds.
// DurationMS is always 0; this path measures nothing.
func (s *Scheduler) CollectSync(results []Result, quorum Quorum) CollectResult {
	for _, res := range results {
		s.RecordResult(res)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var timedOut []string
	for id, st := range s.statuses {
		if !st.Terminal() {
			timedOut = append(timedOut, id)
		}
	}
	sort.Strings(timedOut)
	return CollectResult{
		Results:   s.resultsLocked(),
		TimedOut:  timedOut,
		QuorumMet: quorum.IsMet(s.successCountLocked(), len(s.statuses)),
	}
}

// timeoutOutstanding forces every non-terminal status to Timeout and
// returns the affected IDs sorted.
func (s *Scheduler) timeoutOutstanding() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, st := range s.statuses {
		if !st.Terminal() {
			s.statuses[id] = TimeoutStatus()
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Reset clears the status map, results map, and pending queue so the
// scheduler can be reused for an unrelated batch. The inbox is NOT
// recreated: results queued by stale producers from the previous batch
// remain buffered and will surface in the next batch's Collect call.
// Callers that need full isolation should discard the scheduler and create
// a new one instead.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = make(map[string]Status)
	s.results = make(map[string]Result)
	s.pending = nil
}

// Sender is a cloneable producer handle for pushing results into the
// scheduler's inbox. It is the only way external dispatch code feeds
// results in; producers never touch the scheduler's maps directly.
type Sender struct {
	scheduler *Scheduler
}

// Send delivers a fully-formed Result, blocking while the inbox is full
// until ctx is done. Sending on a closed inbox panics, as for any Go
// channel — call Close only when every producer is finished.
func (sn *Sender) Send(ctx context.Context, res Result) error {
	select {
	case sn.scheduler.inbox <- res:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that no producer will ever send again, letting an active
// Collect call exit before its deadline. Safe to call from multiple handles;
// only the first call closes the inbox.
func (sn *Sender) Close() {
	sn.scheduler.closeOnce.Do(func() { close(sn.scheduler.inbox) })
}
