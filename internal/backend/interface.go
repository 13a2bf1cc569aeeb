package backend

import (
	"context"
	"time"

	"clubledger/internal/amqp"
	"clubledger/internal/blob"
	"clubledger/internal/cache"
	"clubledger/internal/notify"
	"clubledger/internal/sheets"
	"clubledger/internal/storage"
)

// Store is everything the services need from the data backend. Both the
// SQLite repository and the in-memory store implement it.
type Store interface {
	storage.TicketRepository
	storage.MemberDirectory
	storage.ReportIndex
	storage.SettingsStore
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the constructed collaborators. Notifier and Mirror are nil
// when not configured.
type Result struct {
	Store    Store
	Members  *cache.MemberDirectory
	Blobs    blob.Store
	Notifier notify.Dispatcher
	Mirror   sheets.ReportPublisher
	AMQP     *amqp.Client
	Cleanup  CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath  string
	DataDirectory string

	Blob        BlobType
	BlobDir     string
	BlobBaseURL string
	GCSBucket   string

	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	SheetsMirror        bool
	GoogleSpreadsheetID string

	// AMQP is optional; without a URL notifications are not dispatched.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	NotifyConcurrency int
	MemberCacheTTL    time.Duration
}

// BackendType represents the type of data backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// BlobType selects where report artifacts are archived.
type BlobType string

const (
	FSBlob  BlobType = "fs"
	GCSBlob BlobType = "gcs"
)

func (bt BlobType) IsValid() bool {
	return bt == FSBlob || bt == GCSBlob
}
