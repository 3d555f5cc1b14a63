// ABOUTME: GNews provider adapter
// ABOUTME: Fetches top-headlines metadata for one category with bounded safe parameters
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

const gnewsName = "gnews"

// gnewsCategories maps internal categories onto GNews topics.
var gnewsCategories = map[string]string{
	"ANIMALS":     "general",
	"ENVIRONMENT": "science",
	"HEALTH":      "health",
	"SCIENCE":     "science",
	"COMMUNITY":   "general",
	"KINDNESS":    "general",
	"EDUCATION":   "general",
	"SPORTS":      "sports",
}

type gnewsResponse struct {
	TotalArticles int            `json:"totalArticles"`
	Articles      []gnewsArticle `json:"articles"`
}

type gnewsArticle struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	URL         string      `json:"url"`
	PublishedAt string      `json:"publishedAt"`
	Source      gnewsSource `json:"source"`
}

type gnewsSource struct {
	Name string `json:"name"`
}

// GNewsFetcher fetches article metadata from GNews.
type GNewsFetcher struct {
	apiKey   string
	baseURL  string
	pageSize int
	country  string
	language string
	client   *http.Client
	logger   *slog.Logger
}

// NewGNewsFetcher creates the adapter.
func NewGNewsFetcher(cfg config.ProvidersConfig, logger *slog.Logger) *GNewsFetcher {
	return &GNewsFetcher{
		apiKey:   cfg.GNewsAPIKey,
		baseURL:  cfg.GNewsBaseURL,
		pageSize: cfg.PageSize,
		country:  cfg.Country,
		language: cfg.Language,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

func (f *GNewsFetcher) Name() string { return gnewsName }

// FetchCategory returns validated raw articles for one category.
func (f *GNewsFetcher) FetchCategory(ctx context.Context, category string) ([]domain.RawArticle, error) {
	if f.apiKey == "" {
		return nil, apperrors.NewConfigError(
			"gnews api key is not configured", "provider", gnewsName, "FetchCategory", nil)
	}

	topic, ok := gnewsCategories[category]
	if !ok {
		topic = "general"
	}

	params := url.Values{}
	params.Set("apikey", f.apiKey)
	params.Set("category", topic)
	params.Set("country", f.country)
	params.Set("lang", f.language)
	params.Set("max", fmt.Sprintf("%d", f.pageSize))

	reqURL := fmt.Sprintf("%s/top-headlines?%s", f.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.NewInternalError(
			"failed to build provider request", "provider", gnewsName, "FetchCategory", err, nil)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, mapTransportError(err, gnewsName)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp, gnewsName)
	}

	var decoded gnewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.NewProviderError(
			"failed to decode provider response", "provider", gnewsName, "FetchCategory", err, nil)
	}

	articles := make([]domain.RawArticle, 0, len(decoded.Articles))
	for _, item := range decoded.Articles {
		publishedAt, err := time.Parse(time.RFC3339, item.PublishedAt)
		if err != nil {
			publishedAt = time.Now().UTC()
		}

		articles = append(articles, domain.RawArticle{
			Title:       sanitizeText(item.Title),
			Link:        item.URL,
			SourceName:  sanitizeText(item.Source.Name),
			Description: sanitizeText(item.Description),
			PublishedAt: publishedAt,
			ProviderTag: gnewsName,
		})
	}

	valid := filterValid(articles, gnewsName, f.logger)
	f.logger.InfoContext(ctx, "provider fetch completed",
		"provider", gnewsName,
		"category", category,
		"received", len(decoded.Articles),
		"valid", len(valid))

	return valid, nil
}
