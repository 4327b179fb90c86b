package container

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/do"
	"github.com/serroba/url-shortener/internal/health"
	"github.com/serroba/url-shortener/internal/journal"
	"github.com/serroba/url-shortener/internal/shortener"
	"github.com/serroba/url-shortener/internal/store"
	"go.uber.org/zap"
)

// Backend is the configured storage: the repository, the ID sequence backing
// the counter strategy and the dependencies reported by /health.
type Backend struct {
	Repository shortener.Repository
	Sequence   shortener.Sequence
	Checkers   map[string]health.Checker

	journal *journal.Writer
}

// Shutdown closes the memory backend's journal, if any.
func (b *Backend) Shutdown() error {
	if b.journal == nil {
		return nil
	}

	return b.journal.Shutdown()
}

// RepositoryPackage provides the Backend selected by Options.Storage, plus
// shortener.Repository and shortener.Sequence taken from it.
func RepositoryPackage(i *do.Injector) {
	do.Provide(i, newBackend)

	do.Provide(i, func(i *do.Injector) (shortener.Repository, error) {
		return do.MustInvoke[*Backend](i).Repository, nil
	})

	do.Provide(i, func(i *do.Injector) (shortener.Sequence, error) {
		return do.MustInvoke[*Backend](i).Sequence, nil
	})
}

func newBackend(i *do.Injector) (*Backend, error) {
	opts := do.MustInvoke[*Options](i)
	logger := do.MustInvoke[*zap.Logger](i)

	backend := &Backend{Checkers: map[string]health.Checker{}}

	switch opts.Storage {
	case StorageMemory:
		memStore, writer, err := newMemoryStore(opts.JournalPath, logger)
		if err != nil {
			return nil, err
		}

		backend.journal = writer
		backend.Repository = memStore
		backend.Sequence = memStore
	case StorageRedis:
		rdb := do.MustInvoke[*Redis](i)
		redisStore := store.NewRedisStore(rdb.Client)

		backend.Repository = redisStore
		backend.Sequence = redisStore
		backend.Checkers["redis"] = health.NewRedisChecker(rdb.Client)
	case StoragePostgres:
		pg := do.MustInvoke[*Postgres](i)
		pgStore := store.NewPostgresStore(pg.Pool)

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		if err := pgStore.EnsureSchema(ctx); err != nil {
			return nil, err
		}

		backend.Repository = pgStore
		backend.Sequence = pgStore
		backend.Checkers["postgres"] = pgStore
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Storage)
	}

	if opts.CacheTTL > 0 && opts.Storage != StorageRedis {
		rdb := do.MustInvoke[*Redis](i)

		backend.Repository = store.NewRedisCacheRepository(
			backend.Repository, rdb.Client, time.Duration(opts.CacheTTL)*time.Second,
		)
		backend.Checkers["redis"] = health.NewRedisChecker(rdb.Client)
	}

	logger.Info("storage ready",
		zap.String("storage", opts.Storage),
		zap.Int("cacheTtlSeconds", opts.CacheTTL),
	)

	return backend, nil
}

// newMemoryStore restores the journal at path and keeps appending to it, so
// every mapping handed to a client survives a restart and its ID is never
// issued again. An empty path keeps the store purely in memory.
func newMemoryStore(path string, logger *zap.Logger) (*store.MemoryStore, *journal.Writer, error) {
	if path == "" {
		return store.NewMemoryStore(), nil, nil
	}

	urls, err := journal.Load(path)
	if err != nil {
		return nil, nil, err
	}

	writer, err := journal.OpenWriter(path, logger)
	if err != nil {
		return nil, nil, err
	}

	memStore := store.NewMemoryStore(store.WithJournal(writer))
	restored := memStore.Restore(urls)

	logger.Info("restored mappings from journal",
		zap.String("path", path),
		zap.Int("records", len(urls)),
		zap.Int("restored", restored),
	)

	return memStore, writer, nil
}
