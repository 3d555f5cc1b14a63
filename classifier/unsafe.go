// ABOUTME: Shared unsafe-content filter applied by every classification strategy
// ABOUTME: Rejects articles whose title or summary matches the denylist
package classifier

import "strings"

// unsafeKeywords rejects content that can never qualify as good news,
// whichever strategy produced it. Matched case-insensitively as substrings.
var unsafeKeywords = []string{
	"scandal",
	"political",
	"politics",
	"war",
	"killed",
	"killing",
	"murder",
	"death toll",
	"violence",
	"violent",
	"shooting",
	"terror",
	"abuse",
	"assault",
	"fraud",
	"corruption",
	"crisis",
	"disaster",
	"tragedy",
	"explicit",
	"graphic content",
}

// containsUnsafe reports whether the text matches any denylist entry.
// The input must already be lowercased.
func containsUnsafe(text string) bool {
	for _, kw := range unsafeKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// safeContent checks title and summary together, folding case once.
func safeContent(title, summary string) bool {
	return !containsUnsafe(strings.ToLower(title)) && !containsUnsafe(strings.ToLower(summary))
}
