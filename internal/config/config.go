package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// MetricsAddr is where the workers serve /metrics; empty disables it.
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection: sqlite or memory
	DataBackend  string
	SQLiteDBPath string
	DataDir      string

	// Artifact storage: fs or gcs
	BlobBackend string
	BlobDir     string
	BlobBaseURL string
	GCSBucket   string

	// Google service account, shared by GCS and Sheets
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Optional spreadsheet mirror of each report
	ReportSheetsMirror  bool
	GoogleSpreadsheetID string

	// AMQP notifications
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// NotificationsEnabled is the default for the stored toggle.
	NotificationsEnabled bool

	// Scheduled reports
	ReportCheckInterval time.Duration
	ReportRunDay        int
	ReportStaleAfter    time.Duration

	MemberCacheTTL time.Duration
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		MetricsAddr:        getEnv("METRICS_ADDR", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/club.db"),
		DataDir:      getEnv("DATA_DIR", "./data"),

		BlobBackend: getEnv("BLOB_BACKEND", "fs"),
		BlobDir:     getEnv("BLOB_DIR", "./data/artifacts"),
		BlobBaseURL: getEnv("BLOB_BASE_URL", ""),
		GCSBucket:   getEnv("GCS_BUCKET", ""),

		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		ReportSheetsMirror:  getEnvBool("REPORT_SHEETS_MIRROR", false),
		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "club"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "member_notifications"),

		NotificationsEnabled: getEnvBool("NOTIFICATIONS_ENABLED", true),

		ReportCheckInterval: getEnvDuration("REPORT_CHECK_INTERVAL", time.Hour),
		ReportRunDay:        getEnvInt("REPORT_RUN_DAY", 1),
		ReportStaleAfter:    getEnvDuration("REPORT_STALE_AFTER", 30*time.Minute),

		MemberCacheTTL: getEnvDuration("MEMBER_CACHE_TTL", 5*time.Minute),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	if c.MetricsAddr != "" {
		if _, port, err := net.SplitHostPort(c.MetricsAddr); err != nil || port == "" {
			errors = append(errors, fmt.Sprintf("invalid metrics address '%s': must be host:port", c.MetricsAddr))
		}
	}

	switch c.LogFormat {
	case "text", "json", "tint":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of [text json tint]", c.LogFormat))
	}

	switch c.DataBackend {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite]", c.DataBackend))
	}

	switch c.BlobBackend {
	case "fs":
		if c.BlobDir == "" {
			errors = append(errors, "blob directory cannot be empty when using fs blob backend")
		}
	case "gcs":
		if c.GCSBucket == "" {
			errors = append(errors, "GCS bucket is required when using gcs blob backend")
		}
		if !c.hasGoogleCredentials() {
			errors = append(errors, "Google service account credentials are required when using gcs blob backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid blob backend '%s': must be one of [fs gcs]", c.BlobBackend))
	}

	if c.BlobBaseURL != "" {
		if u, err := url.Parse(c.BlobBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid blob base URL '%s': must be http or https", c.BlobBaseURL))
		}
	}

	if c.ReportSheetsMirror {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when the report sheets mirror is enabled")
		}
		if !c.hasGoogleCredentials() {
			errors = append(errors, "Google service account credentials are required when the report sheets mirror is enabled")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ReportCheckInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report check interval %v: must be at least 1 second", c.ReportCheckInterval))
	} else if c.ReportCheckInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid report check interval %v: must be at most 24 hours", c.ReportCheckInterval))
	}

	if c.ReportRunDay < 1 || c.ReportRunDay > 28 {
		errors = append(errors, fmt.Sprintf("invalid report run day %d: must be between 1 and 28", c.ReportRunDay))
	}

	if c.ReportStaleAfter < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid report stale timeout %v: must be at least 1 minute", c.ReportStaleAfter))
	}

	if c.MemberCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid member cache TTL %v: cannot be negative", c.MemberCacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) hasGoogleCredentials() bool {
	return c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != "" ||
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
