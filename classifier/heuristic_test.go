package classifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goodnews/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHeuristic_GoodNewsSelected(t *testing.T) {
	h := NewHeuristicClassifier(testLogger())

	raw := []domain.RawArticle{
		{Title: "Local Dog Rescues Family from Fire", Link: "https://x/1"},
		{Title: "Political Scandal Rocks Capital", Link: "https://x/2"},
	}

	enriched, err := h.Classify(context.Background(), raw)
	require.NoError(t, err)

	// The scandal article is rejected by the denylist; the rescue stays.
	require.Len(t, enriched, 1)
	assert.Equal(t, "https://x/1", enriched[0].Link)
	assert.Equal(t, domain.CategoryAnimals, enriched[0].Category)
	assert.NotEmpty(t, enriched[0].Summary)
}

func TestHeuristic_CategoryAssignment(t *testing.T) {
	tests := map[string]struct {
		title string
		want  domain.Category
	}{
		"dog story is animals":          {title: "Local Dog Rescues Family from Fire", want: domain.CategoryAnimals},
		"solar story is environment":    {title: "Town Switches Fully to Solar Power", want: domain.CategoryEnvironment},
		"vaccine story is health":       {title: "New Vaccine Reaches Remote Villages", want: domain.CategoryHealth},
		"space story is science":        {title: "Space Telescope Spots Distant Galaxy", want: domain.CategoryScience},
		"donation story is kindness":    {title: "Anonymous Donation Saves Local Library", want: domain.CategoryKindness},
		"scholarship is education":      {title: "Scholarship Fund Doubles This Year", want: domain.CategoryEducation},
		"marathon story is sports":      {title: "Marathon Raises Record Funds This Year", want: domain.CategorySports},
		"no keyword falls to default":   {title: "Something Nice Happened Yesterday Evening", want: domain.DefaultCategory},
		"first matching category wins":  {title: "Dog Helps Community Garden Volunteers", want: domain.CategoryAnimals},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, matchCategory(tc.title))
		})
	}
}

func TestHeuristic_OutputCap(t *testing.T) {
	h := NewHeuristicClassifier(testLogger())

	raw := make([]domain.RawArticle, 12)
	for i := range raw {
		raw[i] = domain.RawArticle{
			Title: fmt.Sprintf("A Perfectly Pleasant Headline Number %d", i),
			Link:  fmt.Sprintf("https://x/%d", i),
		}
	}

	enriched, err := h.Classify(context.Background(), raw)
	require.NoError(t, err)
	assert.Len(t, enriched, maxHeuristicResults)
}

func TestHeuristic_UnsafeDescriptionRejected(t *testing.T) {
	h := NewHeuristicClassifier(testLogger())

	raw := []domain.RawArticle{
		{
			Title:       "Neighborhood Bake Sale Breaks Records",
			Description: "Proceeds offset the recent corruption crisis",
			Link:        "https://x/1",
		},
	}

	enriched, err := h.Classify(context.Background(), raw)
	require.NoError(t, err)
	assert.Empty(t, enriched)
}

func TestHeuristic_SummaryFallsBackToTitle(t *testing.T) {
	h := NewHeuristicClassifier(testLogger())

	raw := []domain.RawArticle{
		{Title: "Community Garden Opens Its Gates", Link: "https://x/1"},
		{Title: "Community Garden Opens Second Site", Link: "https://x/2", Description: "Volunteers plant the first beds"},
	}

	enriched, err := h.Classify(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, enriched, 2)
	assert.Equal(t, "Community Garden Opens Its Gates", enriched[0].Summary)
	assert.Equal(t, "Volunteers plant the first beds", enriched[1].Summary)
}

func TestContainsUnsafe(t *testing.T) {
	assert.True(t, containsUnsafe("political scandal rocks capital"))
	assert.True(t, containsUnsafe("massive fraud uncovered"))
	assert.False(t, containsUnsafe("local dog rescues family from fire"))
	assert.False(t, containsUnsafe(""))
}
