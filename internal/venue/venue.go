// Package venue contains the reference dispatcher and execution backends
// for sub-queries. The scheduler itself never executes anything; this
// package is the external collaborator that drains TakePending, runs each
// sub-query against a backend, and pushes results back through the
// scheduler's Sender handle.
package venue

import (
	"context"

	"github.com/ashita-ai/ogi"
)

// Executor runs a single sub-query against one execution backend and
// returns the raw completion text.
type Executor interface {
	// Name tags results with the backend that produced them.
	Name() string
	// Execute blocks until the backend answers or ctx is done.
	Execute(ctx context.Context, q ogi.SubQuery) (string, error)
}
