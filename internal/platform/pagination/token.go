package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeToken wraps a repository cursor value in an opaque URL-safe page
// token. An empty cursor yields an empty token.
func EncodeToken(cursor string) string {
	if cursor == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(cursor))
}

// DecodeToken unwraps a token produced by EncodeToken back into the
// repository cursor value.
func DecodeToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return string(decoded), nil
}
