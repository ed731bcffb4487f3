package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashita-ai/ogi"
)

// OpenAIExecutor runs sub-queries against an OpenAI-compatible chat
// completions endpoint. Any venue that speaks the same wire format
// (vLLM, llama.cpp server, OpenRouter) works by changing the base URL.
type OpenAIExecutor struct {
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
}

// NewOpenAIExecutor creates an executor for the given endpoint.
// defaultModel is used for sub-queries that don't carry their own model.
func NewOpenAIExecutor(baseURL, apiKey, defaultModel string) *OpenAIExecutor {
	return &OpenAIExecutor{
		baseURL:      baseURL,
		apiKey:       apiKey,
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: 120 * time.Second},
	}
}

// Name implements Executor.
func (e *OpenAIExecutor) Name() string { return "openai" }

// Execute implements Executor via POST /v1/chat/completions.
func (e *OpenAIExecutor) Execute(ctx context.Context, q ogi.SubQuery) (string, error) {
	model := q.Model
	if model == "" {
		model = e.defaultModel
	}

	body := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": q.Prompt},
		},
	}
	if q.MaxTokens > 0 {
		body["max_tokens"] = q.MaxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("venue: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("venue: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("venue: execute %s: %w", q.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read a bounded slice of the body for the error message.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("venue: %s returned %d: %s", e.baseURL, resp.StatusCode, snippet)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("venue: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("venue: empty choices for %s", q.ID)
	}
	return parsed.Choices[0].Message.Content, nil
}
