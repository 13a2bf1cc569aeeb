package backend

import (
	"fmt"

	"clubledger/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:          backendType,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		DataDirectory: appConfig.DataDir,

		Blob:        BlobType(appConfig.BlobBackend),
		BlobDir:     appConfig.BlobDir,
		BlobBaseURL: appConfig.BlobBaseURL,
		GCSBucket:   appConfig.GCSBucket,

		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,

		SheetsMirror:        appConfig.ReportSheetsMirror,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		MemberCacheTTL: appConfig.MemberCacheTTL,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data" if empty
	}

	switch c.Blob {
	case FSBlob, "":
		if c.BlobDir == "" {
			return fmt.Errorf("blob directory is required for fs artifact storage")
		}
	case GCSBlob:
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS bucket is required for gcs artifact storage")
		}
	default:
		return fmt.Errorf("invalid blob backend: %s", c.Blob)
	}

	if c.SheetsMirror && c.GoogleSpreadsheetID == "" {
		return fmt.Errorf("Google Spreadsheet ID is required for the report sheets mirror")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}
