// ABOUTME: Provider adapter contract and shared HTTP plumbing for news sources
// ABOUTME: Maps upstream HTTP failures onto the service error taxonomy
package provider

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"goodnews/domain"
	apperrors "goodnews/utils/errors"
)

// Fetcher translates one category into a normalized article list for a
// single upstream provider. Credential validation, safe request parameters,
// and per-item filtering all live behind this boundary.
type Fetcher interface {
	Name() string
	FetchCategory(ctx context.Context, category string) ([]domain.RawArticle, error)
}

// defaultRetryAfter is used when a throttling response carries no hint.
const defaultRetryAfter = 60

// sanitizer strips all markup from provider-supplied text fields.
var sanitizer = bluemonday.StrictPolicy()

// sanitizeText removes markup and collapses surrounding whitespace.
func sanitizeText(s string) string {
	return strings.TrimSpace(sanitizer.Sanitize(s))
}

// mapHTTPError converts a non-2xx provider response into a typed error.
// 429 carries the upstream retry hint, 402 means the provider credit pool is
// spent for the day, anything else is a generic provider failure.
func mapHTTPError(resp *http.Response, component string) error {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		if hdr := resp.Header.Get("Retry-After"); hdr != "" {
			if secs, err := strconv.Atoi(hdr); err == nil && secs > 0 {
				retryAfter = secs
			}
		}
		return apperrors.NewRateLimitError(
			"provider throttled the request", "provider", component, "FetchCategory", retryAfter, nil)
	case http.StatusPaymentRequired:
		return apperrors.NewQuotaError(
			"provider quota exhausted", "provider", component, "FetchCategory", nil)
	default:
		return apperrors.NewProviderError(
			"provider returned an error status", "provider", component, "FetchCategory", nil,
			map[string]interface{}{"status": resp.StatusCode})
	}
}

// mapTransportError converts a network-level failure into a provider error.
func mapTransportError(err error, component string) error {
	return apperrors.NewProviderError(
		"provider unavailable", "provider", component, "FetchCategory", err,
		map[string]interface{}{"status": "unavailable"})
}

// filterValid applies the provider-boundary invariant: items with short
// titles or missing links are logged and dropped, never fatal.
func filterValid(articles []domain.RawArticle, component string, logger *slog.Logger) []domain.RawArticle {
	valid := make([]domain.RawArticle, 0, len(articles))
	for _, a := range articles {
		if !a.Valid() {
			logger.Debug("dropping invalid provider item",
				"provider", component,
				"title_len", len(a.Title),
				"has_link", a.Link != "")
			continue
		}
		valid = append(valid, a)
	}
	return valid
}

// drainAndClose releases the response body so the connection can be reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
