// Package model defines the wire types shared by the HTTP API and its
// clients: request bodies, response payloads, and the response envelope.
package model

import (
	"fmt"
	"time"

	"github.com/ashita-ai/ogi"
	"github.com/ashita-ai/ogi/internal/archive"
)

// Field limits for batch submissions. These keep a single request from
// queueing an unbounded amount of venue work or filling the archive with
// caller-controlled garbage.
const (
	MaxTemplateLen     = 8 * 1024  // 8 KB
	MaxFragmentLen     = 64 * 1024 // 64 KB
	MaxFragmentsPerReq = 256
)

// ValidateCreateBatch checks structural and size limits on a submission.
func ValidateCreateBatch(req CreateBatchRequest) error {
	if req.Template == "" {
		return fmt.Errorf("template is required")
	}
	if len(req.Template) > MaxTemplateLen {
		return fmt.Errorf("template exceeds maximum length of %d bytes", MaxTemplateLen)
	}
	if len(req.Fragments) == 0 {
		return fmt.Errorf("at least one fragment is required")
	}
	if len(req.Fragments) > MaxFragmentsPerReq {
		return fmt.Errorf("fragment count exceeds maximum of %d", MaxFragmentsPerReq)
	}
	for i, f := range req.Fragments {
		if f.ID == "" {
			return fmt.Errorf("fragments[%d].id is required", i)
		}
		if len(f.Content) > MaxFragmentLen {
			return fmt.Errorf("fragments[%d] exceeds maximum length of %d bytes", i, MaxFragmentLen)
		}
	}
	if req.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	return nil
}

// ValidateCollect checks the per-call policy overrides.
func ValidateCollect(req CollectRequest) error {
	if req.TimeoutMS < 0 || req.PerQueryMS < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if req.QuorumFraction != nil && (*req.QuorumFraction < 0 || *req.QuorumFraction > 1) {
		return fmt.Errorf("quorum_fraction must be between 0 and 1")
	}
	return nil
}

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// CreateBatchRequest is the request body for POST /v1/batches.
type CreateBatchRequest struct {
	Template  string         `json:"template"`
	Fragments []ogi.Fragment `json:"fragments"`
	Model     string         `json:"model,omitempty"`
	MaxTokens int            `json:"max_tokens,omitempty"`
}

// CreateBatchResponse is the response for POST /v1/batches.
type CreateBatchResponse struct {
	BatchID  string   `json:"batch_id"`
	QueryIDs []string `json:"query_ids"`
}

// BatchStatusResponse is the response for GET /v1/batches/{batch_id}.
type BatchStatusResponse struct {
	BatchID   string                `json:"batch_id"`
	Venue     string                `json:"venue"`
	CreatedAt time.Time             `json:"created_at"`
	Total     int                   `json:"total"`
	Completed int                   `json:"completed"`
	Succeeded int                   `json:"succeeded"`
	Complete  bool                  `json:"complete"`
	Statuses  map[string]ogi.Status `json:"statuses"`
}

// CollectRequest is the request body for POST /v1/batches/{batch_id}/collect.
// All fields are optional; omitted values fall back to server defaults.
type CollectRequest struct {
	TimeoutMS      int64    `json:"timeout_ms,omitempty"`
	PerQueryMS     int64    `json:"per_query_ms,omitempty"`
	QuorumFraction *float64 `json:"quorum_fraction,omitempty"`
	BestEffort     bool     `json:"best_effort,omitempty"`
}

// CollectResponse is the response for POST /v1/batches/{batch_id}/collect.
type CollectResponse struct {
	BatchID string `json:"batch_id"`
	ogi.CollectResult
}

// ArchiveListResponse is the response for GET /v1/archive.
type ArchiveListResponse struct {
	Batches []archive.Record `json:"batches"`
}
