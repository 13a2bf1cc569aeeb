package gcp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCredentialsLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(file, []byte(`{"type":"file"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cases := []struct {
		name string
		c    Credentials
		want string
		err  bool
	}{
		{"inline wins", Credentials{JSON: ` {"type":"inline"} `, File: file}, `{"type":"inline"}`, false},
		{"file", Credentials{File: file}, `{"type":"file"}`, false},
		{"missing file", Credentials{File: filepath.Join(dir, "nope.json")}, "", true},
		{"nothing", Credentials{}, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.c.Load()
			if tc.err {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil || string(got) != tc.want {
				t.Fatalf("got %q (%v), want %q", got, err, tc.want)
			}
		})
	}

	if _, err := (Credentials{}).Load(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/etc/sa.json")
	if got := (Credentials{}).FromEnv(); got.File != "/etc/sa.json" {
		t.Fatalf("expected env fallback, got %+v", got)
	}
	if got := (Credentials{JSON: "{}"}).FromEnv(); got.File != "" {
		t.Fatalf("explicit credentials must not be overridden: %+v", got)
	}
}
