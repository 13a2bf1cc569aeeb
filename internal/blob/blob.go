// Package blob stores report artifacts on the local filesystem or in a
// Google Cloud Storage bucket.
package blob

import (
	"context"
	"path"
	"strings"
)

// Store is the artifact storage port. Paths are slash separated and
// relative to the store root.
type Store interface {
	Upload(ctx context.Context, p string, data []byte, contentType string) (url string, err error)
	Delete(ctx context.Context, p string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// cleanPath rejects empty, absolute and escaping paths.
func cleanPath(p string) (string, bool) {
	c := path.Clean("/" + strings.TrimSpace(p))
	c = strings.TrimPrefix(c, "/")
	if c == "" || c == "." || strings.HasPrefix(p, "/") || strings.Contains(p, "..") {
		return "", false
	}
	return c, true
}
