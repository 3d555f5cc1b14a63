package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goodnews/scheduler"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func checkHealth(t *testing.T, db, cache *fakePinger) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	h := NewHealthHandler(db, cache)
	require.NoError(t, h.Check(e.NewContext(req, rec)))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealth_AllHealthy(t *testing.T) {
	rec, body := checkHealth(t, &fakePinger{}, &fakePinger{})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	rec, body := checkHealth(t, &fakePinger{err: errors.New("refused")}, &fakePinger{})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestHealth_CacheDownIsDegraded(t *testing.T) {
	rec, body := checkHealth(t, &fakePinger{}, &fakePinger{err: errors.New("refused")})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}

type fakeRunner struct {
	result scheduler.RunResult
	err    error
}

func (f *fakeRunner) RunOnce(ctx context.Context) (scheduler.RunResult, error) {
	return f.result, f.err
}

func TestIngestRun(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/run", nil)
	rec := httptest.NewRecorder()

	h := NewIngestHandler(&fakeRunner{result: scheduler.RunResult{
		Status:        scheduler.RunCompleted,
		RawCount:      12,
		FilteredCount: 5,
		BatchID:       "batch-1",
	}})
	require.NoError(t, h.Run(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)

	var result scheduler.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, scheduler.RunCompleted, result.Status)
	assert.Equal(t, 12, result.RawCount)
	assert.Equal(t, "batch-1", result.BatchID)
}

func TestIngestRun_FailurePropagates(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/run", nil)
	rec := httptest.NewRecorder()

	wantErr := errors.New("pipeline failed")
	h := NewIngestHandler(&fakeRunner{err: wantErr})

	err := h.Run(e.NewContext(req, rec))
	assert.ErrorIs(t, err, wantErr)
}
