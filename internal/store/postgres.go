package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/url-shortener/internal/shortener"
)

const (
	codeConstraint    = "short_urls_pkey"
	urlHashConstraint = "short_urls_url_hash_key"
)

const schema = `
	CREATE SEQUENCE IF NOT EXISTS short_url_ids;
	CREATE TABLE IF NOT EXISTS short_urls (
		code         TEXT PRIMARY KEY,
		id           BIGINT,
		original_url TEXT NOT NULL,
		url_hash     TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT short_urls_url_hash_key UNIQUE (url_hash)
	);
`

// PostgresStore is a PostgreSQL implementation of shortener.Repository and
// shortener.Sequence. Uniqueness of both indices is enforced by the table
// constraints, which also arbitrate inserts racing across processes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed URL store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the table, constraints and ID sequence when missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

func (p *PostgresStore) Insert(ctx context.Context, shortURL *shortener.ShortURL) error {
	query := `
		INSERT INTO short_urls (code, id, original_url, url_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := p.pool.Exec(ctx, query,
		string(shortURL.Code),
		nullableID(shortURL.ID),
		shortURL.OriginalURL,
		string(shortURL.URLHash),
		shortURL.CreatedAt,
	)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}

	switch pgErr.ConstraintName {
	case urlHashConstraint:
		existing, getErr := p.GetByHash(ctx, shortURL.URLHash)
		if getErr != nil {
			return fmt.Errorf("load existing mapping: %w", getErr)
		}

		return &shortener.DuplicateURLError{Existing: existing}
	case codeConstraint:
		return shortener.ErrCodeTaken
	default:
		return err
	}
}

func (p *PostgresStore) GetByCode(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	query := `
		SELECT code, id, original_url, url_hash, created_at
		FROM short_urls
		WHERE code = $1
	`

	return p.scanOne(p.pool.QueryRow(ctx, query, string(code)))
}

func (p *PostgresStore) GetByHash(ctx context.Context, hash shortener.URLHash) (*shortener.ShortURL, error) {
	query := `
		SELECT code, id, original_url, url_hash, created_at
		FROM short_urls
		WHERE url_hash = $1
	`

	return p.scanOne(p.pool.QueryRow(ctx, query, string(hash)))
}

func (p *PostgresStore) scanOne(row pgx.Row) (*shortener.ShortURL, error) {
	var (
		url shortener.ShortURL
		id  *int64
	)

	err := row.Scan(
		&url.Code,
		&id,
		&url.OriginalURL,
		&url.URLHash,
		&url.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	if id != nil {
		url.ID = uint64(*id)
	}

	return &url, nil
}

// NextID draws from a PostgreSQL sequence. Sequence values are never handed
// out twice, even when the surrounding transaction rolls back or the server
// crashes.
func (p *PostgresStore) NextID(ctx context.Context) (uint64, error) {
	var id int64
	if err := p.pool.QueryRow(ctx, `SELECT nextval('short_url_ids')`).Scan(&id); err != nil {
		return 0, err
	}

	return uint64(id), nil
}

// Ping checks database connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func nullableID(id uint64) *int64 {
	if id == 0 {
		return nil
	}

	v := int64(id)

	return &v
}

var (
	_ shortener.Repository = (*PostgresStore)(nil)
	_ shortener.Sequence   = (*PostgresStore)(nil)
)
