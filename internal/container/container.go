// Package container wires the service together with samber/do.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// JournalConsumerGroup is the Redis stream consumer group of the journal writer.
const JournalConsumerGroup = "journal"

const connectTimeout = 5 * time.Second

type Options struct {
	Port        int    `default:"8888"                                help:"Port to listen on"                                         short:"p"`
	BaseURL     string `help:"Public base URL of short links (default http://localhost:<port>)" short:"b"`
	CodeLength  int    `default:"8"                                   help:"Length of generated short codes"                           short:"c"`
	Strategy    string `default:"counter"                             help:"Code generation strategy: counter, hash or random"         short:"s"`
	MaxAttempts int    `default:"5"                                   help:"Code generation attempts before giving up"`
	Storage     string `default:"memory"                              help:"Storage backend: memory, redis or postgres"`
	RedisAddr   string `default:"localhost:6379"                      help:"Redis server address"                                      short:"r"`
	DatabaseURL string `default:"postgres://localhost:5432/shortener" help:"PostgreSQL connection string"`
	CacheTTL    int    `default:"0"                                   help:"Seconds to cache lookups in Redis, 0 disables the cache"`
	Events      bool   `default:"false"                               help:"Publish created mappings to the Redis stream journal topic"`
	JournalPath string `help:"Journal of the memory backend, restored at start-up and written on every insert"`
	LogFormat   string `default:"console"                             help:"Log format: console or json"`
}

// ResolvedBaseURL returns the base URL short links are rendered with.
func (o *Options) ResolvedBaseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

// Redis owns the shared client so the injector closes it on shutdown.
type Redis struct {
	Client *redis.Client
}

func (r *Redis) Shutdown() error {
	return r.Client.Close()
}

// Postgres owns the connection pool so the injector closes it on shutdown.
type Postgres struct {
	Pool *pgxpool.Pool
}

func (p *Postgres) Shutdown() error {
	p.Pool.Close()

	return nil
}

// LoggerPackage provides the zap logger.
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

// RedisPackage provides the Redis client. The client connects lazily, so
// nothing dials Redis unless a component asks for it.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Redis, error) {
		opts := do.MustInvoke[*Options](i)

		return &Redis{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

// PostgresPackage provides the PostgreSQL pool.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Postgres, error) {
		opts := do.MustInvoke[*Options](i)

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		return &Postgres{Pool: pool}, nil
	})
}
