// ABOUTME: Content-addressed article identity derived from the canonical URL
// ABOUTME: The ID is the dedup/merge key and must be stable across processes
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	apperrors "goodnews/utils/errors"
)

// ArticleIDLength is the hex length of a derived article ID.
const ArticleIDLength = 32

var articleIDPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// ArticleIDFromURL derives the deterministic article ID: the first 32 hex
// characters of SHA-256 over the exact URL string. No normalization happens
// here; link normalization is the orchestrator's dedup concern.
func ArticleIDFromURL(url string) (string, error) {
	if url == "" {
		return "", apperrors.NewValidationError(
			"url must not be empty", "domain", "identity", "ArticleIDFromURL", nil)
	}

	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:ArticleIDLength], nil
}

// ValidArticleID reports whether id is a well-formed article ID. Checked at
// every consumption boundary before the ID touches storage or cache keys.
func ValidArticleID(id string) bool {
	return articleIDPattern.MatchString(id)
}
