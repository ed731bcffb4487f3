// Package batch provides the shared business logic for batch operations.
//
// Both the HTTP API and MCP server delegate to this service, so batch
// creation, dispatch, and collection behave identically regardless of
// which surface the caller came in through.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/ogi"
	"github.com/ashita-ai/ogi/internal/archive"
	"github.com/ashita-ai/ogi/internal/telemetry"
	"github.com/ashita-ai/ogi/internal/venue"
)

// ErrNotFound is returned when a batch ID is unknown to the registry.
var ErrNotFound = errors.New("batch not found")

// ErrArchiveDisabled is returned from archive reads when the service was
// built without a store.
var ErrArchiveDisabled = errors.New("archive not configured")

// Batch pairs a scheduler with the metadata of the submission that created it.
type Batch struct {
	ID        string
	Template  string
	Venue     string
	CreatedAt time.Time
	Scheduler *ogi.Scheduler
}

// Registry is an in-memory index of live batches.
type Registry struct {
	mu      sync.RWMutex
	batches map[string]*Batch
}

// NewRegistry creates an empty batch registry.
func NewRegistry() *Registry {
	return &Registry{batches: make(map[string]*Batch)}
}

// Add stores a batch under its ID.
func (r *Registry) Add(b *Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[b.ID] = b
}

// Get returns the batch with the given ID, or false when unknown.
func (r *Registry) Get(id string) (*Batch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	return b, ok
}

// Len reports the number of registered batches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.batches)
}

// Defaults are the collection parameters applied when a caller omits them.
type Defaults struct {
	CollectTimeout  time.Duration
	PerQueryTimeout time.Duration
	QuorumFraction  float64
	InboxSize       int
	Concurrency     int
}

// Service encapsulates batch business logic shared by HTTP and MCP handlers.
type Service struct {
	registry *Registry
	exec     venue.Executor
	store    *archive.Store
	defaults Defaults
	logger   *slog.Logger

	collectDuration metric.Float64Histogram
	queriesTotal    metric.Int64Counter
}

// New creates a batch Service. store may be nil when archiving is not
// configured; collected verdicts are then kept in memory only.
func New(registry *Registry, exec venue.Executor, store *archive.Store, defaults Defaults, logger *slog.Logger) *Service {
	meter := telemetry.Meter("ogi/batch")
	collectDur, _ := meter.Float64Histogram("ogi.collect.duration",
		metric.WithDescription("Wall-clock time spent collecting a batch (ms)"),
		metric.WithUnit("ms"),
	)
	queries, _ := meter.Int64Counter("ogi.queries.total",
		metric.WithDescription("Sub-queries submitted across all batches"),
	)
	return &Service{
		registry:        registry,
		exec:            exec,
		store:           store,
		defaults:        defaults,
		logger:          logger,
		collectDuration: collectDur,
		queriesTotal:    queries,
	}
}

// SubmitInput describes one batch submission.
type SubmitInput struct {
	Template  string
	Fragments []ogi.Fragment
	Model     string
	MaxTokens int
}

// SubmitResult identifies the created batch and its sub-queries.
type SubmitResult struct {
	BatchID  string
	QueryIDs []string
}

// Submit builds sub-queries from the template and fragments, registers a
// new batch, and starts dispatching to the venue in the background.
// Dispatch outlives the originating request; only process shutdown or
// executor completion ends it.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (SubmitResult, error) {
	if input.Template == "" {
		return SubmitResult{}, fmt.Errorf("submit: template is required")
	}
	if len(input.Fragments) == 0 {
		return SubmitResult{}, fmt.Errorf("submit: at least one fragment is required")
	}

	builder := ogi.NewBuilder(input.Template)
	if input.Model != "" {
		builder = builder.WithModel(input.Model)
	}
	if input.MaxTokens > 0 {
		builder = builder.WithMaxTokens(input.MaxTokens)
	}
	queries := builder.BuildBatch(input.Fragments)

	sched := ogi.NewScheduler(
		ogi.WithLogger(s.logger),
		ogi.WithInboxSize(s.defaults.InboxSize),
	)
	sched.Enqueue(queries...)

	b := &Batch{
		ID:        "batch-" + uuid.NewString(),
		Template:  input.Template,
		Venue:     s.exec.Name(),
		CreatedAt: time.Now().UTC(),
		Scheduler: sched,
	}
	s.registry.Add(b)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("ogi.batch_id", b.ID),
		attribute.Int("ogi.batch_size", len(queries)),
	)
	s.queriesTotal.Add(ctx, int64(len(queries)), metric.WithAttributes(
		attribute.String("venue", b.Venue),
	))

	dispatcher := venue.NewDispatcher(s.exec, s.defaults.Concurrency, s.logger)
	go func() {
		n := dispatcher.Dispatch(context.WithoutCancel(ctx), sched)
		s.logger.Info("batch dispatched", "batch_id", b.ID, "queries", n)
	}()

	ids := make([]string, len(queries))
	for i, q := range queries {
		ids[i] = q.ID
	}
	return SubmitResult{BatchID: b.ID, QueryIDs: ids}, nil
}

// StatusResult is a point-in-time view of one batch.
type StatusResult struct {
	BatchID   string
	Venue     string
	CreatedAt time.Time
	Total     int
	Completed int
	Succeeded int
	Complete  bool
	Statuses  map[string]ogi.Status
}

// Status reports per-query statuses and aggregate counts for a batch.
func (s *Service) Status(_ context.Context, batchID string) (StatusResult, error) {
	b, ok := s.registry.Get(batchID)
	if !ok {
		return StatusResult{}, fmt.Errorf("status %s: %w", batchID, ErrNotFound)
	}
	return StatusResult{
		BatchID:   b.ID,
		Venue:     b.Venue,
		CreatedAt: b.CreatedAt,
		Total:     b.Scheduler.TotalCount(),
		Completed: b.Scheduler.CompletedCount(),
		Succeeded: b.Scheduler.SuccessCount(),
		Complete:  b.Scheduler.IsComplete(),
		Statuses:  b.Scheduler.StatusSnapshot(),
	}, nil
}

// CollectInput holds per-call overrides for the collection policy.
// Zero fields fall back to the service defaults; BestEffort wins over
// QuorumFraction when both are set.
type CollectInput struct {
	Timeout        time.Duration
	PerQuery       time.Duration
	QuorumFraction *float64
	BestEffort     bool
}

// Collect blocks on the batch's scheduler until quorum or timeout, then
// archives the verdict when a store is configured. A second concurrent
// call on the same batch fails with ogi.ErrAlreadyCollecting.
func (s *Service) Collect(ctx context.Context, batchID string, input CollectInput) (ogi.CollectResult, error) {
	b, ok := s.registry.Get(batchID)
	if !ok {
		return ogi.CollectResult{}, fmt.Errorf("collect %s: %w", batchID, ErrNotFound)
	}

	policy := ogi.TimeoutPolicy{
		Total:    s.defaults.CollectTimeout,
		PerQuery: s.defaults.PerQueryTimeout,
	}
	if input.Timeout > 0 {
		policy.Total = input.Timeout
	}
	if input.PerQuery > 0 {
		policy.PerQuery = input.PerQuery
	}

	quorum := ogi.QuorumFraction(s.defaults.QuorumFraction)
	if input.QuorumFraction != nil {
		quorum = ogi.QuorumFraction(*input.QuorumFraction)
	}
	if input.BestEffort {
		quorum = ogi.QuorumBestEffort()
	}

	cr, err := b.Scheduler.Collect(ctx, policy, quorum)
	if err != nil {
		return ogi.CollectResult{}, fmt.Errorf("collect %s: %w", batchID, err)
	}

	s.collectDuration.Record(ctx, float64(cr.DurationMS), metric.WithAttributes(
		attribute.Bool("quorum_met", cr.QuorumMet),
	))

	if s.store != nil {
		if err := s.store.Save(ctx, b.ID, b.Template, b.Venue, cr); err != nil {
			s.logger.Warn("collect: archive save failed", "batch_id", b.ID, "error", err)
		}
	}

	s.logger.Info("batch collected",
		"batch_id", b.ID,
		"results", len(cr.Results),
		"timed_out", len(cr.TimedOut),
		"quorum_met", cr.QuorumMet,
		"duration_ms", cr.DurationMS,
	)
	return cr, nil
}

// Archived returns up to limit archived verdicts, newest first.
func (s *Service) Archived(ctx context.Context, limit int) ([]archive.Record, error) {
	if s.store == nil {
		return nil, ErrArchiveDisabled
	}
	recs, err := s.store.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("archived: %w", err)
	}
	return recs, nil
}

// ArchivedBatch returns the archived verdict for one batch. The registry
// only holds live batches, so this is how a caller reads a collection
// that finished before a restart.
func (s *Service) ArchivedBatch(ctx context.Context, batchID string) (archive.Record, error) {
	if s.store == nil {
		return archive.Record{}, ErrArchiveDisabled
	}
	rec, ok, err := s.store.Get(ctx, batchID)
	if err != nil {
		return archive.Record{}, fmt.Errorf("archived %s: %w", batchID, err)
	}
	if !ok {
		return archive.Record{}, fmt.Errorf("archived %s: %w", batchID, ErrNotFound)
	}
	return rec, nil
}
