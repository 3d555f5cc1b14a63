// ABOUTME: Echo handler triggering an on-demand ingestion run
// ABOUTME: Auth-gated; returns the typed run result as JSON
package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"goodnews/scheduler"
)

// ingestRunner is the scheduler surface the handler needs.
type ingestRunner interface {
	RunOnce(ctx context.Context) (scheduler.RunResult, error)
}

// IngestHandler serves the manual ingestion trigger.
type IngestHandler struct {
	runner ingestRunner
}

func NewIngestHandler(runner ingestRunner) *IngestHandler {
	return &IngestHandler{runner: runner}
}

// Run handles POST /ingest/run. Quota-reached and no-articles runs are
// successful responses; only pipeline failures surface as errors.
func (h *IngestHandler) Run(c echo.Context) error {
	result, err := h.runner.RunOnce(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
