// Package gcp resolves service account credentials for the Google API
// clients (Sheets and Cloud Storage).
package gcp

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoCredentials is returned when no credential source is configured.
var ErrNoCredentials = errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")

// Credentials names where the service account key comes from. Inline JSON
// wins over a file path.
type Credentials struct {
	JSON string
	File string
}

// FromEnv falls back to GOOGLE_APPLICATION_CREDENTIALS when neither field
// is set.
func (c Credentials) FromEnv() Credentials {
	if strings.TrimSpace(c.JSON) == "" && strings.TrimSpace(c.File) == "" {
		c.File = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return c
}

// Load returns the raw service account JSON.
func (c Credentials) Load() ([]byte, error) {
	switch {
	case strings.TrimSpace(c.JSON) != "":
		return []byte(strings.TrimSpace(c.JSON)), nil
	case strings.TrimSpace(c.File) != "":
		b, err := os.ReadFile(strings.TrimSpace(c.File))
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, ErrNoCredentials
	}
}
