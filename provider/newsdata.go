// ABOUTME: NewsData.io provider adapter
// ABOUTME: Fetches latest-news metadata for one category with bounded safe parameters
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"goodnews/config"
	"goodnews/domain"
	apperrors "goodnews/utils/errors"
)

const newsDataName = "newsdata"

// newsDataCategories maps internal categories onto the provider's taxonomy.
var newsDataCategories = map[string]string{
	"ANIMALS":     "other",
	"ENVIRONMENT": "environment",
	"HEALTH":      "health",
	"SCIENCE":     "science",
	"COMMUNITY":   "top",
	"KINDNESS":    "top",
	"EDUCATION":   "education",
	"SPORTS":      "sports",
}

type newsDataResponse struct {
	Status       string            `json:"status"`
	TotalResults int               `json:"totalResults"`
	Results      []newsDataArticle `json:"results"`
}

type newsDataArticle struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	PubDate     string `json:"pubDate"`
	SourceName  string `json:"source_name"`
	SourceID    string `json:"source_id"`
}

// NewsDataFetcher fetches article metadata from NewsData.io.
type NewsDataFetcher struct {
	apiKey   string
	baseURL  string
	pageSize int
	country  string
	language string
	client   *http.Client
	logger   *slog.Logger
}

// NewNewsDataFetcher creates the adapter. The HTTP timeout is enforced by
// the client; callers layer retry and rate limiting on top.
func NewNewsDataFetcher(cfg config.ProvidersConfig, logger *slog.Logger) *NewsDataFetcher {
	return &NewsDataFetcher{
		apiKey:   cfg.NewsDataAPIKey,
		baseURL:  cfg.NewsDataBaseURL,
		pageSize: cfg.PageSize,
		country:  cfg.Country,
		language: cfg.Language,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

func (f *NewsDataFetcher) Name() string { return newsDataName }

// FetchCategory returns validated raw articles for one category.
func (f *NewsDataFetcher) FetchCategory(ctx context.Context, category string) ([]domain.RawArticle, error) {
	if f.apiKey == "" {
		return nil, apperrors.NewConfigError(
			"newsdata api key is not configured", "provider", newsDataName, "FetchCategory", nil)
	}

	providerCategory, ok := newsDataCategories[category]
	if !ok {
		providerCategory = "top"
	}

	// Single category, single country, single language, bounded page size:
	// anything wider trips provider-side request validation.
	params := url.Values{}
	params.Set("apikey", f.apiKey)
	params.Set("category", providerCategory)
	params.Set("country", f.country)
	params.Set("language", f.language)
	params.Set("size", fmt.Sprintf("%d", f.pageSize))

	reqURL := fmt.Sprintf("%s/latest?%s", f.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.NewInternalError(
			"failed to build provider request", "provider", newsDataName, "FetchCategory", err, nil)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, mapTransportError(err, newsDataName)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp, newsDataName)
	}

	var decoded newsDataResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.NewProviderError(
			"failed to decode provider response", "provider", newsDataName, "FetchCategory", err, nil)
	}

	articles := make([]domain.RawArticle, 0, len(decoded.Results))
	for _, item := range decoded.Results {
		source := item.SourceName
		if source == "" {
			source = item.SourceID
		}

		articles = append(articles, domain.RawArticle{
			Title:       sanitizeText(item.Title),
			Link:        item.Link,
			SourceName:  sanitizeText(source),
			Description: sanitizeText(item.Description),
			PublishedAt: parseNewsDataTime(item.PubDate),
			ProviderTag: newsDataName,
		})
	}

	valid := filterValid(articles, newsDataName, f.logger)
	f.logger.InfoContext(ctx, "provider fetch completed",
		"provider", newsDataName,
		"category", category,
		"received", len(decoded.Results),
		"valid", len(valid))

	return valid, nil
}

// parseNewsDataTime parses the provider's "2006-01-02 15:04:05" format.
// Unparseable values fall back to now so downstream TTL math stays sane.
func parseNewsDataTime(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now().UTC()
}
