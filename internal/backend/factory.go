package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clubledger/internal/amqp"
	"clubledger/internal/blob"
	"clubledger/internal/cache"
	"clubledger/internal/gcp"
	"clubledger/internal/notify"
	gsheet "clubledger/internal/sheets/google"
	"clubledger/internal/storage"
	"clubledger/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// Create builds every configured collaborator. On error, whatever was
// already opened is closed again.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res      = &Result{}
		closers  []func() error
		buildErr error
	)
	defer func() {
		if buildErr != nil {
			closeAll(closers)
		}
	}()

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			buildErr = fmt.Errorf("failed to initialize SQLite repository: %w", err)
			return nil, buildErr
		}
		closers = append(closers, repo.Close)
		res.Store = repo
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		res.Store = memory.NewFromFiles(dataDir)
		f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	}
	res.Members = cache.NewMemberDirectory(res.Store, config.MemberCacheTTL)

	creds := gcp.Credentials{JSON: config.GoogleServiceAccountJSON, File: config.GoogleServiceAccountFile}

	switch config.Blob {
	case GCSBlob:
		store, err := blob.NewGCSStore(ctx, config.GCSBucket, creds)
		if err != nil {
			buildErr = fmt.Errorf("failed to initialize GCS artifact storage: %w", err)
			return nil, buildErr
		}
		res.Blobs = store
	default:
		store, err := blob.NewFSStore(config.BlobDir, config.BlobBaseURL)
		if err != nil {
			buildErr = fmt.Errorf("failed to initialize artifact directory: %w", err)
			return nil, buildErr
		}
		res.Blobs = store
	}
	f.logger.Info("Initialized artifact storage", "backend", config.Blob)

	if config.SheetsMirror {
		client, err := gsheet.New(ctx, config.GoogleSpreadsheetID, creds)
		if err != nil {
			buildErr = fmt.Errorf("failed to initialize Google Sheets mirror: %w", err)
			return nil, buildErr
		}
		res.Mirror = client
		f.logger.Info("Initialized Google Sheets report mirror", "spreadsheet_id", config.GoogleSpreadsheetID)
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			// Reports still generate without notifications.
			f.logger.Warn("Failed to initialize AMQP client, continuing without notifications", "error", err)
		} else {
			closers = append(closers, client.Close)
			res.AMQP = client
			res.Notifier = notify.NewAMQPDispatcher(client, config.NotifyConcurrency)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	} else {
		f.logger.Info("AMQP disabled - report notifications will not be sent")
	}

	res.Cleanup = func() error { return closeAll(closers) }
	return res, nil
}

// closeAll closes in reverse order of opening.
func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
