package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/ogi/internal/archive"
	"github.com/ashita-ai/ogi/internal/batch"
	"github.com/ashita-ai/ogi/internal/model"
	"github.com/ashita-ai/ogi/internal/venue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestServer(t *testing.T, exec venue.Executor) *Server {
	t.Helper()
	defaults := batch.Defaults{
		CollectTimeout:  5 * time.Second,
		PerQueryTimeout: 50 * time.Millisecond,
		QuorumFraction:  1.0,
		InboxSize:       64,
		Concurrency:     4,
	}
	svc := batch.New(batch.NewRegistry(), exec, nil, defaults, testLogger())
	return New(ServerConfig{
		BatchSvc:            svc,
		Logger:              testLogger(),
		Port:                0,
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        30 * time.Second,
		Version:             "test",
		VenueName:           exec.Name(),
		MaxRequestBodyBytes: 1 << 20,
	})
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, target any) model.ResponseMeta {
	t.Helper()
	var envelope struct {
		Data json.RawMessage    `json:"data"`
		Meta model.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, target))
	return envelope.Meta
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorDetail {
	t.Helper()
	var envelope model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error
}

func TestCreateBatch(t *testing.T) {
	srv := newTestServer(t, &venue.MockExecutor{})

	rec := doJSON(t, srv, http.MethodPost, "/v1/batches", map[string]any{
		"template": "Summarize: {fragment}",
		"fragments": []map[string]string{
			{"id": "frag-1", "content": "alpha"},
			{"id": "frag-2", "content": "beta"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp model.CreateBatchResponse
	meta := decodeData(t, rec, &resp)
	assert.NotEmpty(t, resp.BatchID)
	assert.Len(t, resp.QueryIDs, 2)
	assert.NotEmpty(t, meta.RequestID)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), meta.RequestID)
}

func TestCreateBatchValidation(t *testing.T) {
	srv := newTestServer(t, &venue.MockExecutor{})

	rec := doJSON(t, srv, http.MethodPost, "/v1/batches", map[string]any{
		"fragments": []map[string]string{{"id": "f", "content": "x"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, model.ErrCodeInvalidInput, detail.Code)
	assert.Contains(t, detail.Message, "template")

	rec = doJSON(t, srv, http.MethodPost, "/v1/batches", map[string]any{
		"template": "t", "fragments": []any{}, "bogus_field": true,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBatchStatus(t *testing.T) {
	srv := newTestServer(t, &venue.MockExecutor{Delay: 200 * time.Millisecond})

	rec := doJSON(t, srv, http.MethodPost, "/v1/batches", map[string]any{
		"template":  "Summarize: {fragment}",
		"fragments": []map[string]string{{"id": "frag-1", "content": "alpha"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.CreateBatchResponse
	decodeData(t, rec, &created)

	rec = doJSON(t, srv, http.MethodGet, "/v1/batches/"+created.BatchID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var st model.BatchStatusResponse
	decodeData(t, rec, &st)
	assert.Equal(t, created.BatchID, st.BatchID)
	assert.Equal(t, "mock", st.Venue)
	assert.Equal(t, 1, st.Total)
	assert.False(t, st.Complete)
	assert.Len(t, st.Statuses, 1)
}

func TestGetBatchNotFound(t *testing.T) {
	srv := newTestServer(t, &venue.MockExecutor{})

	rec := doJSON(t, srv, http.MethodGet, "/v1/batches/batch-missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, model.ErrCodeNotFound, decodeError(t, rec).Code)
}

func TestCollectBatch(t *testing.T) {
	srv := newTestServer(t, &venue.MockExecutor{})

	rec := doJSON(t, srv, http.MethodPost, "/v1/batches", map[string]any{
		"template": "Summarize: {fragment}",
		"fragments": []map[string]string{
			{"id": "frag-1", "content": "alpha"},
			{"id": "frag-2", "content": "beta"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.CreateBatchResponse
	decodeData(t, rec, &created)

	// Empty body: collect with server defaults.
	rec = doJSON(t, srv, http.MethodPost, "/v1/batches/"+created.BatchID+"/collect", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var collected model.CollectResponse
	decodeData(t, rec, &collected)
	assert.Equal(t, created.BatchID, collected.BatchID)
	assert.True(t, collected.QuorumMet)
	assert.Empty(t, collected.TimedOut)
	assert.Len(t, collected.Results, 2)
}

func TestCollectBatchOverrides(t *testing.T) {
	exec := &venue.MockExecutor{FailFragments: map[string]bool{"frag-2": true}}
	srv := newTestServer(t, exec)

	rec := doJSON(t, srv, http.MethodPost, "/v1/batches", map[string]any{
		"template": "Summarize: {fragment}",
		"fragments": []map[string]string{
			{"id": "frag-1", "content": "alpha"},
			{"id": "frag-2", "content": "beta"},
		},
	})
	var created model.CreateBatchResponse
	decodeData(t, rec, &created)

	rec = doJSON(t, srv, http.MethodPost, "/v1/batches/"+created.BatchID+"/collect", map[string]any{
		"quorum_fraction": 0.5,
		"timeout_ms":      3000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var collected model.CollectResponse
	decodeData(t, rec, &collected)
	assert.True(t, collected.QuorumMet)
	assert.Len(t, collected.Results, 2)
}

func TestCollectBatchInvalidQuorum(t *testing.T) {
	srv := newTestServer(t, &venue.MockExecutor{})

	rec := doJSON(t, srv, http.MethodPost, "/v1/batches", map[string]any{
		"template":  "Summarize: {fragment}",
		"fragments": []map[string]string{{"id": "frag-1", "content": "alpha"}},
	})
	var created model.CreateBatchResponse
	decodeData(t, rec, &created)

	rec = doJSON(t, srv, http.MethodPost, "/v1/batches/"+created.BatchID+"/collect", map[string]any{
		"quorum_fraction": 2.0,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.ErrCodeInvalidInput, decodeError(t, rec).Code)
}

func TestCollectConflict(t *testing.T) {
	srv := newTestServer(t, &venue.MockExecutor{Delay: 500 * time.Millisecond})

	rec := doJSON(t, srv, http.MethodPost, "/v1/batches", map[string]any{
		"template":  "Summarize: {fragment}",
		"fragments": []map[string]string{{"id": "frag-1", "content": "alpha"}},
	})
	var created model.CreateBatchResponse
	decodeData(t, rec, &created)

	done := make(chan struct{})
	go func() {
		defer close(done)
		first := doJSON(t, srv, http.MethodPost, "/v1/batches/"+created.BatchID+"/collect", nil)
		assert.Equal(t, http.StatusOK, first.Code)
	}()

	time.Sleep(100 * time.Millisecond)
	rec = doJSON(t, srv, http.MethodPost, "/v1/batches/"+created.BatchID+"/collect", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, model.ErrCodeConflict, decodeError(t, rec).Code)
	<-done
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &venue.MockExecutor{})

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	decodeData(t, rec, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Equal(t, "mock", health.Venue)
}

func newArchivedTestServer(t *testing.T, exec venue.Executor) *Server {
	t.Helper()
	store, err := archive.Open(context.Background(), t.TempDir()+"/archive.db", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	defaults := batch.Defaults{
		CollectTimeout:  5 * time.Second,
		PerQueryTimeout: 50 * time.Millisecond,
		QuorumFraction:  1.0,
		InboxSize:       64,
		Concurrency:     4,
	}
	svc := batch.New(batch.NewRegistry(), exec, store, defaults, testLogger())
	return New(ServerConfig{
		BatchSvc:            svc,
		Logger:              testLogger(),
		Port:                0,
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        30 * time.Second,
		Version:             "test",
		VenueName:           exec.Name(),
		MaxRequestBodyBytes: 1 << 20,
	})
}

func TestArchiveListsCollectedBatches(t *testing.T) {
	srv := newArchivedTestServer(t, &venue.MockExecutor{})

	rec := doJSON(t, srv, http.MethodPost, "/v1/batches", map[string]any{
		"template":  "Summarize: {fragment}",
		"fragments": []map[string]string{{"id": "frag-1", "content": "alpha"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.CreateBatchResponse
	decodeData(t, rec, &created)

	rec = doJSON(t, srv, http.MethodPost, "/v1/batches/"+created.BatchID+"/collect", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/v1/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list model.ArchiveListResponse
	decodeData(t, rec, &list)
	require.Len(t, list.Batches, 1)
	assert.Equal(t, created.BatchID, list.Batches[0].BatchID)
	assert.True(t, list.Batches[0].QuorumMet)

	rec = doJSON(t, srv, http.MethodGet, "/v1/archive/"+created.BatchID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var single archive.Record
	decodeData(t, rec, &single)
	assert.Equal(t, created.BatchID, single.BatchID)
	assert.Equal(t, "mock", single.Venue)
	assert.Len(t, single.Results, 1)
}

func TestArchiveEmptyList(t *testing.T) {
	srv := newArchivedTestServer(t, &venue.MockExecutor{})

	rec := doJSON(t, srv, http.MethodGet, "/v1/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list model.ArchiveListResponse
	decodeData(t, rec, &list)
	assert.Empty(t, list.Batches)
}

func TestArchiveInvalidLimit(t *testing.T) {
	srv := newArchivedTestServer(t, &venue.MockExecutor{})

	rec := doJSON(t, srv, http.MethodGet, "/v1/archive?limit=zero", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.ErrCodeInvalidInput, decodeError(t, rec).Code)
}

func TestArchivedBatchNotFound(t *testing.T) {
	srv := newArchivedTestServer(t, &venue.MockExecutor{})

	rec := doJSON(t, srv, http.MethodGet, "/v1/archive/batch-missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, model.ErrCodeNotFound, decodeError(t, rec).Code)
}

func TestArchiveDisabled(t *testing.T) {
	srv := newTestServer(t, &venue.MockExecutor{})

	rec := doJSON(t, srv, http.MethodGet, "/v1/archive", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "not enabled")
}
