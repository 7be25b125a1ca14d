package backend

import (
	"context"
	"time"

	"registri/internal/books"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function.
// Categories fronts the backend's category list with the configured cache.
type BackendResult struct {
	Backend    books.Books
	Categories books.CategoryLister
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Tenant the sqlite backend seeds default categories for
	TenantID string

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Remote specific
	APIBaseURL string
	APITimeout time.Duration

	// Category cache; an empty RedisURL keeps the cache in process
	RedisURL          string
	CategoryCacheTTL  time.Duration
	CategoryCacheSize int

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	RemoteBackend BackendType = "remote"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, RemoteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
