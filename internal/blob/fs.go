package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"clubledger/internal/core"
)

// FSStore keeps artifacts under a root directory.
type FSStore struct {
	root    string
	baseURL string
}

// NewFSStore creates the root directory if needed. When baseURL is empty,
// uploads return file:// URLs.
func NewFSStore(root, baseURL string) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: abs, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *FSStore) Upload(ctx context.Context, p string, data []byte, _ string) (string, error) {
	rel, ok := cleanPath(p)
	if !ok {
		return "", &core.StorageError{Op: "upload", Path: p, Err: errors.New("invalid path")}
	}
	if err := ctx.Err(); err != nil {
		return "", &core.StorageError{Op: "upload", Path: rel, Err: err}
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", &core.StorageError{Op: "upload", Path: rel, Err: err}
	}

	// Write then rename so readers never see a partial artifact.
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", &core.StorageError{Op: "upload", Path: rel, Err: err}
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return "", &core.StorageError{Op: "upload", Path: rel, Err: err}
	}
	return s.url(rel, full), nil
}

func (s *FSStore) Delete(_ context.Context, p string) error {
	rel, ok := cleanPath(p)
	if !ok {
		return &core.StorageError{Op: "delete", Path: p, Err: errors.New("invalid path")}
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &core.StorageError{Op: "delete", Path: rel, Err: err}
	}
	return nil
}

func (s *FSStore) List(_ context.Context, prefix string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(s.root, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(full, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, full)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, &core.StorageError{Op: "list", Path: prefix, Err: err}
	}
	sort.Strings(out)
	return out, nil
}

func (s *FSStore) url(rel, full string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + rel
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(full)}).String()
}
