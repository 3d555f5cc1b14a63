// ABOUTME: Opaque pagination cursor for article list reads
// ABOUTME: Encodes the last-seen sort value and ID as URL-safe base64 JSON
package domain

import (
	"encoding/base64"
	"encoding/json"
)

// Cursor marks the position after the last item of the previous page.
type Cursor struct {
	LastValue string `json:"v"` // last-seen value of the sort column, as text
	LastID    string `json:"id"`
}

// Encode serializes the cursor into an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses an opaque cursor token. Invalid tokens return ok=false;
// callers degrade to an unpaginated first page rather than erroring.
func DecodeCursor(token string) (Cursor, bool) {
	if token == "" {
		return Cursor{}, false
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, false
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, false
	}

	if c.LastID == "" || !ValidArticleID(c.LastID) {
		return Cursor{}, false
	}

	return c, true
}
