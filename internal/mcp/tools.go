package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/ogi"
	"github.com/ashita-ai/ogi/internal/batch"
)

func (s *Server) registerTools() {
	// ogi_submit — fan a task out into parallel sub-queries.
	s.mcpServer.AddTool(
		mcplib.NewTool("ogi_submit",
			mcplib.WithDescription(`Fan a task out into parallel sub-queries, one per fragment.

WHEN TO USE: When a task decomposes into independent pieces of work over
many inputs — summarizing document chunks, extracting facts per section,
classifying a list of items.

Each fragment's content is substituted into the template's {fragment}
placeholder and dispatched to the venue immediately. The call returns as
soon as the batch is registered; use ogi_status to watch progress and
ogi_collect to wait for results.

EXAMPLE: template="Summarize: {fragment}" with one fragment per chapter
submits one summarization sub-query per chapter.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("template",
				mcplib.Description("Prompt template. The {fragment} placeholder is replaced with each fragment's content; a template without the placeholder is sent verbatim for every fragment."),
				mcplib.Required(),
			),
			mcplib.WithString("fragments_json",
				mcplib.Description(`JSON array of fragments, each {"id": "...", "content": "..."}. One sub-query is created per fragment.`),
				mcplib.Required(),
			),
			mcplib.WithString("model",
				mcplib.Description("Optional model override for every sub-query in the batch."),
			),
			mcplib.WithNumber("max_tokens",
				mcplib.Description("Optional output token cap for every sub-query."),
				mcplib.Min(1),
			),
		),
		s.handleSubmit,
	)

	// ogi_status — point-in-time view of a batch.
	s.mcpServer.AddTool(
		mcplib.NewTool("ogi_status",
			mcplib.WithDescription(`Check the progress of a submitted batch without blocking.

Returns per-query statuses (pending, submitted, complete, failed, timeout)
and aggregate counts. Safe to poll.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("batch_id",
				mcplib.Description("The batch ID returned by ogi_submit."),
				mcplib.Required(),
			),
		),
		s.handleStatus,
	)

	// ogi_collect — block until quorum or timeout, then return the verdict.
	s.mcpServer.AddTool(
		mcplib.NewTool("ogi_collect",
			mcplib.WithDescription(`Wait for a batch's results under a quorum and timeout policy.

Blocks until enough sub-queries succeed to satisfy the quorum or the
timeout budget is spent, whichever comes first. Sub-queries still
outstanding when collection stops are marked timed out and listed in the
response; their results surface in a later ogi_collect call if they
arrive late.

Only one collection may run per batch at a time; a concurrent call fails
immediately.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("batch_id",
				mcplib.Description("The batch ID returned by ogi_submit."),
				mcplib.Required(),
			),
			mcplib.WithNumber("timeout_ms",
				mcplib.Description("Total collection budget in milliseconds. Defaults to the server's configured budget."),
				mcplib.Min(1),
			),
			mcplib.WithNumber("quorum_fraction",
				mcplib.Description("Fraction of sub-queries that must succeed (0.0-1.0). Defaults to the server's configured quorum."),
				mcplib.Min(0),
				mcplib.Max(1),
			),
			mcplib.WithBoolean("best_effort",
				mcplib.Description("When true, ignore quorum and simply gather whatever arrives until the budget is spent."),
			),
		),
		s.handleCollect,
	)
}

func (s *Server) handleSubmit(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	template := request.GetString("template", "")
	if template == "" {
		return errorResult("template is required"), nil
	}

	fragmentsJSON := request.GetString("fragments_json", "")
	if fragmentsJSON == "" {
		return errorResult("fragments_json is required"), nil
	}
	var fragments []ogi.Fragment
	if err := json.Unmarshal([]byte(fragmentsJSON), &fragments); err != nil {
		return errorResult(fmt.Sprintf("invalid fragments_json: %v", err)), nil
	}

	out, err := s.batchSvc.Submit(ctx, batch.SubmitInput{
		Template:  template,
		Fragments: fragments,
		Model:     request.GetString("model", ""),
		MaxTokens: request.GetInt("max_tokens", 0),
	})
	if err != nil {
		return errorResult(fmt.Sprintf("submit failed: %v", err)), nil
	}

	resultData, _ := json.MarshalIndent(map[string]any{
		"batch_id":  out.BatchID,
		"query_ids": out.QueryIDs,
	}, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleStatus(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	batchID := request.GetString("batch_id", "")
	if batchID == "" {
		return errorResult("batch_id is required"), nil
	}

	st, err := s.batchSvc.Status(ctx, batchID)
	if err != nil {
		if errors.Is(err, batch.ErrNotFound) {
			return errorResult(fmt.Sprintf("batch %s not found", batchID)), nil
		}
		return errorResult(fmt.Sprintf("status failed: %v", err)), nil
	}

	resultData, _ := json.MarshalIndent(st, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleCollect(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	batchID := request.GetString("batch_id", "")
	if batchID == "" {
		return errorResult("batch_id is required"), nil
	}

	input := batch.CollectInput{
		BestEffort: request.GetBool("best_effort", false),
	}
	if ms := request.GetInt("timeout_ms", 0); ms > 0 {
		input.Timeout = time.Duration(ms) * time.Millisecond
	}
	if frac := request.GetFloat("quorum_fraction", -1); frac >= 0 {
		if frac > 1 {
			return errorResult("quorum_fraction must be between 0 and 1"), nil
		}
		f := frac
		input.QuorumFraction = &f
	}

	cr, err := s.batchSvc.Collect(ctx, batchID, input)
	if err != nil {
		switch {
		case errors.Is(err, batch.ErrNotFound):
			return errorResult(fmt.Sprintf("batch %s not found", batchID)), nil
		case errors.Is(err, ogi.ErrAlreadyCollecting):
			return errorResult("collection already in progress for this batch"), nil
		default:
			return errorResult(fmt.Sprintf("collect failed: %v", err)), nil
		}
	}

	resultData, _ := json.MarshalIndent(cr, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}
