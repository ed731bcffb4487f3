package venue

import (
	"context"
	"fmt"
	"time"

	"github.com/ashita-ai/ogi"
)

// MockExecutor is a deterministic in-process backend for tests and the
// default local setup. It echoes a summary of the prompt after an optional
// delay and can be told to fail specific fragment IDs.
type MockExecutor struct {
	// Delay is applied before every response to simulate venue latency.
	Delay time.Duration
	// FailFragments lists fragment IDs whose sub-queries fail.
	FailFragments map[string]bool
	// Respond overrides the default echo response when non-nil.
	Respond func(q ogi.SubQuery) string
}

// Name implements Executor.
func (e *MockExecutor) Name() string { return "mock" }

// Execute implements Executor.
func (e *MockExecutor) Execute(ctx context.Context, q ogi.SubQuery) (string, error) {
	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if e.FailFragments[q.FragmentID] {
		return "", fmt.Errorf("venue: mock failure for fragment %s", q.FragmentID)
	}
	if e.Respond != nil {
		return e.Respond(q), nil
	}

	prompt := q.Prompt
	if len(prompt) > 64 {
		prompt = prompt[:64] + "…"
	}
	return "mock response to: " + prompt, nil
}
