package venue

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/ogi"
)

// Dispatcher drains a scheduler's pending batch and fans it out to an
// Executor, bounded by a concurrency limit. Per-item failures become
// Results with Success=false — they never abort the batch. The scheduler
// only ever sees the Sender; the dispatcher never touches its maps.
type Dispatcher struct {
	exec   Executor
	limit  int
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher with at most limit in-flight
// sub-queries.
func NewDispatcher(exec Executor, limit int, logger *slog.Logger) *Dispatcher {
	if limit <= 0 {
		limit = 1
	}
	return &Dispatcher{exec: exec, limit: limit, logger: logger}
}

// Dispatch drains TakePending, executes every drained sub-query, and sends
// each result through the scheduler's Sender. It blocks until all results
// are sent or ctx is done, and returns the number of sub-queries drained.
// Run it in its own goroutine when the caller collects concurrently.
func (d *Dispatcher) Dispatch(ctx context.Context, sched *ogi.Scheduler) int {
	queries := sched.TakePending()
	if len(queries) == 0 {
		return 0
	}

	// Correct the placeholder job IDs before execution starts, so status
	// snapshots taken mid-flight show the venue-side identifier.
	jobPrefix := d.exec.Name() + "-"
	for _, q := range queries {
		sched.UpdateStatus(q.ID, ogi.SubmittedStatus(jobPrefix+uuid.NewString()))
	}

	d.logger.Info("venue: dispatching batch",
		"count", len(queries),
		"venue", d.exec.Name(),
		"concurrency", d.limit,
	)

	sender := sched.Sender()
	var g errgroup.Group
	g.SetLimit(d.limit)
	for _, q := range queries {
		g.Go(func() error {
			res := d.execute(ctx, q)
			if err := sender.Send(ctx, res); err != nil {
				d.logger.Warn("venue: result dropped, send cancelled",
					"query_id", q.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait() // closures never return errors; failures are Results

	return len(queries)
}

func (d *Dispatcher) execute(ctx context.Context, q ogi.SubQuery) ogi.Result {
	start := time.Now()
	content, err := d.exec.Execute(ctx, q)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		d.logger.Debug("venue: sub-query failed",
			"query_id", q.ID, "error", err, "duration_ms", duration)
		return ogi.Result{
			QueryID:    q.ID,
			Success:    false,
			Error:      err.Error(),
			DurationMS: duration,
			Venue:      d.exec.Name(),
		}
	}
	return ogi.Result{
		QueryID:    q.ID,
		Success:    true,
		Content:    content,
		DurationMS: duration,
		Venue:      d.exec.Name(),
	}
}
