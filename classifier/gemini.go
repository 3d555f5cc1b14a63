// ABOUTME: Gemini-backed classification strategy with strict response-schema output
// ABOUTME: Batches the full raw set into one call and post-validates every returned item
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"goodnews/config"
	"goodnews/domain"
	"goodnews/retry"
	apperrors "goodnews/utils/errors"
)

const geminiComponent = "gemini"

// classificationItem is the exact shape the response schema enforces.
type classificationItem struct {
	UniqueID string `json:"uniqueId"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Category string `json:"category"`
}

// promptArticle is the compact input shape serialized into the prompt.
type promptArticle struct {
	UniqueID    string `json:"uniqueId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

const classificationInstructions = `You curate a positive-news feed. From the article list below, select only genuinely uplifting, positive stories and classify each one.

Rules:
- Exclude anything political, violent, tragic, or controversial.
- category must be exactly one of: %s.
- summary must be one or two sentences in plain language, written from the title and description.
- uniqueId must be copied unchanged from the input article.
- Return every selected article in the JSON array; return an empty array if nothing qualifies.

Articles:
%s`

// classificationSchema constrains the model to a JSON array of classification items.
func classificationSchema() *genai.Schema {
	categories := make([]string, len(domain.Categories))
	for i, c := range domain.Categories {
		categories[i] = string(c)
	}

	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"uniqueId": {
					Type:        genai.TypeString,
					Description: "The uniqueId of the source article, copied unchanged",
				},
				"title": {
					Type:        genai.TypeString,
					Description: "The article title, lightly cleaned up if needed",
				},
				"summary": {
					Type:        genai.TypeString,
					Description: "One or two sentence positive summary",
				},
				"category": {
					Type: genai.TypeString,
					Enum: categories,
				},
			},
			Required: []string{"uniqueId", "title", "summary", "category"},
		},
	}
}

// GeminiClassifier classifies a whole raw batch in one structured-output call.
type GeminiClassifier struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	retrier *retry.Retrier
	logger  *slog.Logger
}

// NewGeminiClassifier creates the strategy. Returns nil (not an error) when
// no API key is configured so the selector can fall back to the heuristic.
func NewGeminiClassifier(ctx context.Context, cfg config.GeminiConfig, retrier *retry.Retrier, logger *slog.Logger) (*GeminiClassifier, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperrors.NewConfigError(
			fmt.Sprintf("failed to create gemini client: %v", err),
			"classifier", geminiComponent, "NewGeminiClassifier", nil)
	}

	return &GeminiClassifier{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		retrier: retrier,
		logger:  logger,
	}, nil
}

func (g *GeminiClassifier) Name() string { return geminiComponent }

// Classify sends the batch through one schema-constrained call, validates
// each returned item, and joins valid items back to their source articles.
func (g *GeminiClassifier) Classify(ctx context.Context, raw []domain.RawArticle) ([]domain.EnrichedArticle, error) {
	prompt, byLink, err := buildPrompt(raw)
	if err != nil {
		return nil, err
	}

	var text string
	err = g.retrier.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		var callErr error
		text, callErr = g.generate(callCtx, prompt)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	items, err := parseClassification(text)
	if err != nil {
		return nil, apperrors.NewClassifierError(
			"gemini response was not a valid classification array",
			"classifier", geminiComponent, "Classify", err,
			map[string]interface{}{"response_prefix": truncate(text, 120)})
	}

	return joinItems(items, byLink, g.logger), nil
}

func (g *GeminiClassifier) generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.2)),
		ResponseMIMEType: "application/json",
		ResponseSchema:   classificationSchema(),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genConfig)
	if err != nil {
		return "", mapGeminiError(err)
	}

	text := resp.Text()
	if text == "" {
		return "", apperrors.NewClassifierError(
			"gemini returned an empty response", "classifier", geminiComponent, "generate", nil, nil)
	}
	return text, nil
}

// buildPrompt serializes the batch into the instruction template and returns
// the link index used to join results back to their source articles.
func buildPrompt(raw []domain.RawArticle) (string, map[string]domain.RawArticle, error) {
	byLink := make(map[string]domain.RawArticle, len(raw))
	input := make([]promptArticle, 0, len(raw))
	for _, a := range raw {
		byLink[a.Link] = a
		input = append(input, promptArticle{
			UniqueID:    a.Link,
			Title:       a.Title,
			Description: a.Description,
			Source:      a.SourceName,
		})
	}

	serialized, err := json.Marshal(input)
	if err != nil {
		return "", nil, apperrors.NewInternalError(
			"failed to serialize articles for classification",
			"classifier", geminiComponent, "buildPrompt", err, nil)
	}

	categories := make([]string, len(domain.Categories))
	for i, c := range domain.Categories {
		categories[i] = string(c)
	}

	return fmt.Sprintf(classificationInstructions,
		strings.Join(categories, ", "), string(serialized)), byLink, nil
}

// parseClassification decodes the model output. Any shape other than a JSON
// array is an error; an empty array is a legitimate zero result.
func parseClassification(text string) ([]classificationItem, error) {
	var items []classificationItem
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// joinItems validates each returned item and joins it back to its source
// article by uniqueId. Invalid items are dropped individually; they never
// fail the batch.
func joinItems(items []classificationItem, byLink map[string]domain.RawArticle, logger *slog.Logger) []domain.EnrichedArticle {
	enriched := make([]domain.EnrichedArticle, 0, len(items))
	for _, item := range items {
		source, known := byLink[item.UniqueID]
		if !known {
			logger.Warn("classifier returned unknown uniqueId, dropping item", "unique_id", item.UniqueID)
			continue
		}
		if len(item.Title) <= domain.MinTitleLength {
			logger.Warn("classifier returned short title, dropping item", "unique_id", item.UniqueID)
			continue
		}
		if item.Summary == "" {
			logger.Warn("classifier returned empty summary, dropping item", "unique_id", item.UniqueID)
			continue
		}
		if !domain.ValidCategory(domain.Category(item.Category)) {
			logger.Warn("classifier returned unknown category, dropping item",
				"unique_id", item.UniqueID, "category", item.Category)
			continue
		}
		if !safeContent(item.Title, item.Summary) {
			logger.Warn("classifier returned unsafe content, dropping item", "unique_id", item.UniqueID)
			continue
		}

		source.Title = item.Title
		enriched = append(enriched, domain.EnrichedArticle{
			RawArticle: source,
			Category:   domain.Category(item.Category),
			Summary:    item.Summary,
		})
	}
	return enriched
}

// mapGeminiError translates provider error text into typed errors so logging
// and backoff can differentiate auth, quota, timeout, and availability
// failures. All of them are non-fatal upstream: the selector degrades to the
// heuristic either way.
func mapGeminiError(err error) error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "permission"):
		return apperrors.NewConfigError(
			"gemini rejected the configured credentials",
			"classifier", geminiComponent, "generate", nil)
	case strings.Contains(msg, "quota") || strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "resource_exhausted"):
		return apperrors.NewQuotaError(
			"gemini quota exhausted", "classifier", geminiComponent, "generate", err)
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return apperrors.NewTimeoutError(
			"gemini call timed out", "classifier", geminiComponent, "generate", err, nil)
	case strings.Contains(msg, "unavailable") || strings.Contains(msg, "overloaded") || strings.Contains(msg, "503"):
		return apperrors.NewClassifierError(
			"gemini service unavailable", "classifier", geminiComponent, "generate", err,
			map[string]interface{}{"status": "unavailable"})
	default:
		return apperrors.NewClassifierError(
			"gemini call failed", "classifier", geminiComponent, "generate", err, nil)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
