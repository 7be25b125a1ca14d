package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"registri/internal/adapters"
	"registri/internal/amqp"
	"registri/internal/books"
	"registri/internal/books/memory"
	"registri/internal/books/remote"
	"registri/internal/cache"
	"registri/internal/core"
	"registri/internal/middleware/trace"
	"registri/internal/services"
	"registri/internal/storage"
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

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(ctx, config)
	case RemoteBackend:
		result, err = f.createRemoteBackend(config)
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.withCategoryCache(ctx, config, result)
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional; the service skips publishing without a publisher.
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	ledgerService := services.NewLedgerService(sqliteRepo, publisher)
	adapter := adapters.NewSQLiteAdapter(sqliteRepo, ledgerService)

	scope := core.Scope{TenantID: config.TenantID}
	if err := adapter.Seed(ctx, scope, memory.DefaultCategories()); err != nil {
		adapter.Close()
		return nil, fmt.Errorf("failed to seed categories: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Backend: adapter,
		Cleanup: adapter.Close,
	}, nil
}

func (f *DefaultFactory) createRemoteBackend(config Config) (*BackendResult, error) {
	httpClient := &http.Client{
		Timeout:   config.APITimeout,
		Transport: trace.NewTransport(nil),
	}
	cli, err := remote.New(config.APIBaseURL, config.APITimeout,
		remote.WithLogger(f.logger),
		remote.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote client: %w", err)
	}

	f.logger.Info("Initialized remote backend", "base_url", config.APIBaseURL)

	return &BackendResult{
		Backend: cli,
		Cleanup: nil, // No cleanup needed for remote backend
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Backend: store,
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}

// withCategoryCache fronts the backend's categories with Redis when
// configured and reachable, and with an in-process LRU otherwise.
func (f *DefaultFactory) withCategoryCache(ctx context.Context, config Config, result *BackendResult) {
	if config.CategoryCacheTTL <= 0 {
		result.Categories = result.Backend
		return
	}

	var store cache.Cache[[]core.Category]
	var closers []CleanupFunc

	if config.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, config.RedisURL)
		if err != nil {
			f.logger.Warn("Redis unavailable, using in-process category cache", "error", err)
		} else {
			store = cache.NewRedisCache[[]core.Category](client, "registri:", config.CategoryCacheTTL)
			closers = append(closers, client.Close)
			f.logger.Info("Initialized Redis category cache", "ttl", config.CategoryCacheTTL)
		}
	}
	if store == nil {
		size := config.CategoryCacheSize
		if size <= 0 {
			size = 64
		}
		lru := cache.NewLRUCache[[]core.Category](size, config.CategoryCacheTTL)
		manager := cache.NewManager()
		manager.Register(lru)
		manager.StartCleanup(config.CategoryCacheTTL)
		store = lru
		closers = append(closers, func() error {
			manager.Stop()
			return nil
		})
	}

	result.Categories = cache.NewCategoryCache(result.Backend, store)
	result.Cleanup = chainCleanup(result.Cleanup, closers...)
}

func chainCleanup(first CleanupFunc, rest ...CleanupFunc) CleanupFunc {
	all := append([]CleanupFunc(nil), rest...)
	if first != nil {
		all = append(all, first)
	}
	if len(all) == 0 {
		return nil
	}
	return func() error {
		var errs []error
		for _, fn := range all {
			if err := fn(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

var _ books.CategoryLister = (*cache.CategoryCache)(nil)
