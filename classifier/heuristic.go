// ABOUTME: Keyword-based classification strategy used when AI is unavailable
// ABOUTME: Matches lowercased titles against an ordered category keyword table
package classifier

import (
	"context"
	"log/slog"
	"strings"

	"goodnews/domain"
)

// maxHeuristicResults caps the no-AI path to protect downstream volume.
const maxHeuristicResults = 5

// categoryKeywords is evaluated in order; the first matching category wins.
// A slice (not a map) keeps the assignment deterministic.
var categoryKeywords = []struct {
	Category domain.Category
	Keywords []string
}{
	{domain.CategoryAnimals, []string{"dog", "cat", "puppy", "kitten", "animal", "wildlife", "pet ", "zoo", "shelter"}},
	{domain.CategoryEnvironment, []string{"climate", "environment", "forest", "ocean", "recycl", "solar", "renewable", "conservation"}},
	{domain.CategoryHealth, []string{"health", "hospital", "cure", "treatment", "vaccine", "recovery", "patient"}},
	{domain.CategoryScience, []string{"science", "research", "discover", "breakthrough", "study finds", "space", "nasa"}},
	{domain.CategoryKindness, []string{"kindness", "donate", "donation", "charity", "volunteer", "generous", "helps stranger"}},
	{domain.CategoryEducation, []string{"school", "student", "teacher", "education", "scholarship", "graduate"}},
	{domain.CategorySports, []string{"sport", "championship", "olympic", "team wins", "marathon", "athlete"}},
	{domain.CategoryCommunity, []string{"community", "neighborhood", "local hero", "rescue", "reunite", "family"}},
}

// HeuristicClassifier enriches articles by keyword match. It never calls out
// and never fails; unsafe items are dropped, not errors.
type HeuristicClassifier struct {
	logger *slog.Logger
}

func NewHeuristicClassifier(logger *slog.Logger) *HeuristicClassifier {
	return &HeuristicClassifier{logger: logger}
}

func (h *HeuristicClassifier) Name() string { return "heuristic" }

// Classify assigns the first matching category per article, or the default
// category when nothing matches, and rejects denylisted content. Output is
// capped at maxHeuristicResults.
func (h *HeuristicClassifier) Classify(ctx context.Context, raw []domain.RawArticle) ([]domain.EnrichedArticle, error) {
	enriched := make([]domain.EnrichedArticle, 0, maxHeuristicResults)

	for _, article := range raw {
		if len(enriched) >= maxHeuristicResults {
			h.logger.Debug("heuristic output cap reached", "cap", maxHeuristicResults)
			break
		}

		if !safeContent(article.Title, article.Description) {
			h.logger.Debug("heuristic rejected unsafe article", "link", article.Link)
			continue
		}

		summary := article.Description
		if summary == "" {
			summary = article.Title
		}

		enriched = append(enriched, domain.EnrichedArticle{
			RawArticle: article,
			Category:   matchCategory(article.Title),
			Summary:    summary,
		})
	}

	return enriched, nil
}

// matchCategory returns the first category whose keyword list matches the
// lowercased title, or the default category.
func matchCategory(title string) domain.Category {
	lower := strings.ToLower(title)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, kw) {
				return entry.Category
			}
		}
	}
	return domain.DefaultCategory
}
