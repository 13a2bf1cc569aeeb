package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gstorage "google.golang.org/api/storage/v1"

	"clubledger/internal/core"
	"clubledger/internal/gcp"
)

const gcsMaxAttempts = 3

// GCSStore keeps artifacts as objects in one bucket.
type GCSStore struct {
	svc    *gstorage.Service
	bucket string
	// backoff returns the pause before retry n (1-based).
	backoff func(n int) time.Duration
}

// NewGCSStore authenticates with a service account key.
func NewGCSStore(ctx context.Context, bucket string, creds gcp.Credentials) (*GCSStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("missing GCS bucket")
	}
	key, err := creds.FromEnv().Load()
	if err != nil {
		return nil, err
	}
	svc, err := gstorage.NewService(ctx,
		goption.WithCredentialsJSON(key),
		goption.WithScopes(gstorage.DevstorageReadWriteScope))
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	slog.InfoContext(ctx, "Google Cloud Storage client created", "bucket", bucket)
	return NewGCSStoreWithService(svc, bucket), nil
}

// NewGCSStoreWithService wraps an already configured service.
func NewGCSStoreWithService(svc *gstorage.Service, bucket string) *GCSStore {
	return &GCSStore{
		svc:    svc,
		bucket: bucket,
		backoff: func(n int) time.Duration {
			return time.Duration(1<<uint(n-1)) * 500 * time.Millisecond
		},
	}
}

func (s *GCSStore) Upload(ctx context.Context, p string, data []byte, contentType string) (string, error) {
	name, ok := cleanPath(p)
	if !ok {
		return "", &core.StorageError{Op: "upload", Path: p, Err: errors.New("invalid path")}
	}
	var obj *gstorage.Object
	err := s.retry(ctx, "upload", name, func() error {
		var err error
		obj, err = s.svc.Objects.Insert(s.bucket, &gstorage.Object{Name: name, ContentType: contentType}).
			Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Artifact uploaded to GCS", "bucket", s.bucket, "object", name, "bytes", len(data))
	if obj != nil && obj.MediaLink != "" {
		return obj.MediaLink, nil
	}
	return s.objectURL(name), nil
}

func (s *GCSStore) Delete(ctx context.Context, p string) error {
	name, ok := cleanPath(p)
	if !ok {
		return &core.StorageError{Op: "delete", Path: p, Err: errors.New("invalid path")}
	}
	return s.retry(ctx, "delete", name, func() error {
		err := s.svc.Objects.Delete(s.bucket, name).Context(ctx).Do()
		if statusOf(err) == http.StatusNotFound {
			return nil
		}
		return err
	})
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	err := s.svc.Objects.List(s.bucket).Prefix(prefix).Pages(ctx, func(objs *gstorage.Objects) error {
		for _, o := range objs.Items {
			out = append(out, o.Name)
		}
		return nil
	})
	if err != nil {
		return nil, &core.StorageError{Op: "list", Path: prefix, Err: err}
	}
	return out, nil
}

// retry repeats fn on rate limiting and server errors.
func (s *GCSStore) retry(ctx context.Context, op, name string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= gcsMaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isTransient(err) || attempt == gcsMaxAttempts {
			break
		}
		wait := s.backoff(attempt)
		slog.WarnContext(ctx, "GCS request failed, retrying",
			"op", op, "object", name, "attempt", attempt, "retry_in", wait, "error", err)
		select {
		case <-ctx.Done():
			return &core.StorageError{Op: op, Path: name, Err: ctx.Err()}
		case <-time.After(wait):
		}
	}
	return &core.StorageError{Op: op, Path: name, Err: err}
}

func (s *GCSStore) objectURL(name string) string {
	return "https://storage.googleapis.com/" + s.bucket + "/" + (&url.URL{Path: name}).EscapedPath()
}

func statusOf(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

func isTransient(err error) bool {
	code := statusOf(err)
	return code == http.StatusTooManyRequests || code >= 500
}
