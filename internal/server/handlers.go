package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashita-ai/ogi"
	"github.com/ashita-ai/ogi/internal/archive"
	"github.com/ashita-ai/ogi/internal/batch"
	"github.com/ashita-ai/ogi/internal/model"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	batchSvc            *batch.Service
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	venueName           string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	BatchSvc            *batch.Service
	Logger              *slog.Logger
	Version             string
	VenueName           string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		batchSvc:            d.BatchSvc,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		venueName:           d.VenueName,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleCreateBatch handles POST /v1/batches.
func (h *Handlers) HandleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBatchRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if err := model.ValidateCreateBatch(req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	out, err := h.batchSvc.Submit(r.Context(), batch.SubmitInput{
		Template:  req.Template,
		Fragments: req.Fragments,
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	writeJSON(w, r, http.StatusCreated, model.CreateBatchResponse{
		BatchID:  out.BatchID,
		QueryIDs: out.QueryIDs,
	})
}

// HandleGetBatch handles GET /v1/batches/{batch_id}.
func (h *Handlers) HandleGetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("batch_id")

	st, err := h.batchSvc.Status(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, batch.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "batch not found")
			return
		}
		h.logger.Error("get batch failed", "batch_id", batchID, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to get batch")
		return
	}

	writeJSON(w, r, http.StatusOK, model.BatchStatusResponse{
		BatchID:   st.BatchID,
		Venue:     st.Venue,
		CreatedAt: st.CreatedAt,
		Total:     st.Total,
		Completed: st.Completed,
		Succeeded: st.Succeeded,
		Complete:  st.Complete,
		Statuses:  st.Statuses,
	})
}

// HandleCollectBatch handles POST /v1/batches/{batch_id}/collect.
// The call blocks until the batch's quorum is met or the timeout budget
// is spent, so the server's write timeout must exceed the largest
// collection timeout callers are allowed to request.
func (h *Handlers) HandleCollectBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("batch_id")

	// An empty body means "use server defaults for everything".
	var req model.CollectRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if err := model.ValidateCollect(req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	cr, err := h.batchSvc.Collect(r.Context(), batchID, batch.CollectInput{
		Timeout:        time.Duration(req.TimeoutMS) * time.Millisecond,
		PerQuery:       time.Duration(req.PerQueryMS) * time.Millisecond,
		QuorumFraction: req.QuorumFraction,
		BestEffort:     req.BestEffort,
	})
	if err != nil {
		switch {
		case errors.Is(err, batch.ErrNotFound):
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "batch not found")
		case errors.Is(err, ogi.ErrAlreadyCollecting):
			writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "collection already in progress for this batch")
		default:
			h.logger.Error("collect failed", "batch_id", batchID, "error", err)
			writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "collection failed")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, model.CollectResponse{
		BatchID:       batchID,
		CollectResult: cr,
	})
}

const (
	defaultArchiveLimit = 20
	maxArchiveLimit     = 100
)

// HandleListArchive handles GET /v1/archive. It reads from the SQLite
// archive, so batches collected before a restart still appear.
func (h *Handlers) HandleListArchive(w http.ResponseWriter, r *http.Request) {
	limit := defaultArchiveLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "limit must be a positive integer")
			return
		}
		limit = min(n, maxArchiveLimit)
	}

	recs, err := h.batchSvc.Archived(r.Context(), limit)
	if err != nil {
		if errors.Is(err, batch.ErrArchiveDisabled) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "archive is not enabled")
			return
		}
		h.logger.Error("list archive failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to list archive")
		return
	}
	if recs == nil {
		recs = []archive.Record{}
	}

	writeJSON(w, r, http.StatusOK, model.ArchiveListResponse{Batches: recs})
}

// HandleGetArchived handles GET /v1/archive/{batch_id}.
func (h *Handlers) HandleGetArchived(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("batch_id")

	rec, err := h.batchSvc.ArchivedBatch(r.Context(), batchID)
	if err != nil {
		switch {
		case errors.Is(err, batch.ErrArchiveDisabled):
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "archive is not enabled")
		case errors.Is(err, batch.ErrNotFound):
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "batch not found in archive")
		default:
			h.logger.Error("get archived batch failed", "batch_id", batchID, "error", err)
			writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to read archive")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, rec)
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Venue   string `json:"venue"`
	Uptime  int64  `json:"uptime_seconds"`
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Venue:   h.venueName,
		Uptime:  int64(time.Since(h.startedAt).Seconds()),
	})
}
