package feeds

import (
	"encoding/base64"
	"fmt"
)

// ArticleID derives the stable identifier of an article from its link.
// The encoding is unpadded base64url, so it is URL-safe and reversible.
func ArticleID(link string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(link))
}

// LinkFromID reverses ArticleID
func LinkFromID(id string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return "", fmt.Errorf("invalid article id %q: %w", id, err)
	}
	return string(raw), nil
}
