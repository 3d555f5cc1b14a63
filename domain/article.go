// ABOUTME: Core article types shared across the fetch-classify-store pipeline
// ABOUTME: Defines raw provider output, enriched classification output, and the persisted shape
package domain

import "time"

// Category is the fixed set of good-news categories. Classifier output is
// validated against this set; anything else is rejected.
type Category string

const (
	CategoryAnimals     Category = "ANIMALS"
	CategoryEnvironment Category = "ENVIRONMENT"
	CategoryHealth      Category = "HEALTH"
	CategoryScience     Category = "SCIENCE"
	CategoryCommunity   Category = "COMMUNITY"
	CategoryKindness    Category = "KINDNESS"
	CategoryEducation   Category = "EDUCATION"
	CategorySports      Category = "SPORTS"
)

// Categories lists every valid category in deterministic order.
var Categories = []Category{
	CategoryAnimals,
	CategoryEnvironment,
	CategoryHealth,
	CategoryScience,
	CategoryCommunity,
	CategoryKindness,
	CategoryEducation,
	CategorySports,
}

// DefaultCategory is assigned when no keyword matches in the heuristic path.
const DefaultCategory = CategoryCommunity

// ValidCategory reports whether c is one of the fixed categories.
func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// MinTitleLength is the shortest title accepted anywhere in the pipeline.
const MinTitleLength = 10

// RawArticle is a provider's normalized output, transient until classified.
type RawArticle struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	SourceName  string    `json:"source_name"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
	ProviderTag string    `json:"provider_tag"`
}

// Valid reports whether the article passes the provider-boundary filter.
func (a RawArticle) Valid() bool {
	return len(a.Title) > MinTitleLength && a.Link != ""
}

// EnrichedArticle is classifier output, transient until stored.
type EnrichedArticle struct {
	RawArticle
	Category        Category `json:"category"`
	Summary         string   `json:"summary"`
	PositivityScore int      `json:"positivity_score"` // 0-100, 0 when the strategy does not score
}

// SharePlatforms is the allow-list for share tracking. Anything else is
// bucketed into PlatformOther rather than rejected.
var SharePlatforms = map[string]bool{
	"twitter":  true,
	"facebook": true,
	"whatsapp": true,
	"email":    true,
}

// PlatformOther is the catch-all share platform bucket.
const PlatformOther = "other"

// NormalizePlatform maps an arbitrary platform value onto the allow-list.
func NormalizePlatform(platform string) string {
	if SharePlatforms[platform] {
		return platform
	}
	return PlatformOther
}

// StoredArticle is the persisted article document. Content fields are owned
// by the ingestion path; counters are owned by the engagement path.
type StoredArticle struct {
	ID                string         `json:"id"`
	UniqueID          string         `json:"unique_id"` // canonical link, the dedup key source
	Title             string         `json:"title"`
	Summary           string         `json:"summary"`
	Category          Category       `json:"category"`
	Link              string         `json:"link"`
	Source            string         `json:"source"`
	PublishedOriginal time.Time      `json:"published_original"`
	BatchID           string         `json:"batch_id"`
	PublishedAt       time.Time      `json:"published_at"` // ingestion time
	ExpiresAt         time.Time      `json:"expires_at"`
	IsActive          bool           `json:"is_active"`
	Views             int            `json:"views"`
	Saves             int            `json:"saves"`
	Shares            int            `json:"shares"`
	SharesByPlatform  map[string]int `json:"shares_by_platform"`
	TrendingScore     int            `json:"trending_score"`
	LastViewedAt      *time.Time     `json:"last_viewed_at,omitempty"`
	LastSharedAt      *time.Time     `json:"last_shared_at,omitempty"`
}

// BatchMetadata records one ingestion run, used as the fallback source when
// a later run fetches nothing. CategoryCounts is the per-category article
// breakdown of the batch, kept denormalized for cheap dashboard reads.
type BatchMetadata struct {
	BatchID        string         `json:"batch_id"`
	ArticleCount   int            `json:"article_count"`
	ProcessedAt    time.Time      `json:"processed_at"`
	InstanceID     string         `json:"instance_id"`
	CategoryCounts map[string]int `json:"category_counts,omitempty"`
}

// UserBookmarks is a user's bookmark set. Insertion order is preserved for
// the most-recent-N display.
type UserBookmarks struct {
	UserID     string    `json:"user_id"`
	ArticleIDs []string  `json:"article_ids"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Contains reports whether the bookmark set holds the given article ID.
func (b UserBookmarks) Contains(articleID string) bool {
	for _, id := range b.ArticleIDs {
		if id == articleID {
			return true
		}
	}
	return false
}
