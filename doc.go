// Package ogi implements a sub-query fan-out scheduler: it decomposes one
// large task into independent sub-queries, hands them off to an external
// execution venue, and collects the returned results under configurable
// quorum and timeout policies.
//
// The scheduler never executes anything itself. Callers build a batch with a
// Builder, Enqueue it, drain it with TakePending for out-of-band dispatch,
// and feed results back through a Sender handle. Collect consumes arrivals
// until the quorum is met or the deadline passes, and always returns a
// CollectResult within the declared total timeout — partial result sets are
// valid, expected output, never an error.
package ogi
