package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxAttempts bounds code generation retries for a single Shorten call.
const DefaultMaxAttempts = 5

// CreateHook is called once for every mapping the registry creates.
type CreateHook func(ctx context.Context, shortURL *ShortURL)

// Registry is the get-or-create protocol over a Repository.
//
// Shorten calls for the same normalized URL are collapsed per URL hash, so
// within a process the lookup and the insert for a key never interleave with
// another call for that key. Across processes the repository's uniqueness on
// the hash decides the winner.
type Registry struct {
	store       Repository
	generator   Generator
	maxAttempts int
	onCreate    CreateHook
	now         func() time.Time
	flight      singleflight.Group
	logger      *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxAttempts sets the generation retry budget.
func WithMaxAttempts(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithCreateHook registers a hook run after each successful creation.
func WithCreateHook(hook CreateHook) RegistryOption {
	return func(r *Registry) {
		r.onCreate = hook
	}
}

// WithClock overrides the clock used for CreatedAt.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates a registry over store using generator for new codes.
func NewRegistry(store Repository, generator Generator, logger *zap.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:       store,
		generator:   generator,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		logger:      logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

type shortenResult struct {
	shortURL *ShortURL
	created  bool
}

// Shorten returns the mapping for rawURL, creating it when absent. created is
// true only for a call that created the mapping without sharing the result
// with concurrent callers for the same URL.
func (r *Registry) Shorten(ctx context.Context, rawURL string) (*ShortURL, bool, error) {
	normalizedURL, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, false, err
	}

	urlHash := HashURL(normalizedURL)

	existing, err := r.store.GetByHash(ctx, urlHash)
	if err == nil {
		return existing, false, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("lookup by hash: %w", err)
	}

	// The flight runs once for all concurrent callers of the same key, so it
	// must not fail because the first caller went away.
	flightCtx := context.WithoutCancel(ctx)

	v, err, shared := r.flight.Do(string(urlHash), func() (any, error) {
		return r.getOrCreate(flightCtx, rawURL, normalizedURL, urlHash)
	})
	if err != nil {
		return nil, false, err
	}

	res, _ := v.(shortenResult)

	return res.shortURL, res.created && !shared, nil
}

func (r *Registry) getOrCreate(ctx context.Context, rawURL, normalizedURL string, urlHash URLHash) (shortenResult, error) {
	existing, err := r.store.GetByHash(ctx, urlHash)
	if err == nil {
		return shortenResult{shortURL: existing}, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return shortenResult{}, fmt.Errorf("lookup by hash: %w", err)
	}

	for attempt := range r.maxAttempts {
		code, err := r.generator.Generate(ctx, Seed{URL: normalizedURL, Hash: urlHash, Attempt: attempt})
		if err != nil {
			return shortenResult{}, fmt.Errorf("generate code: %w", err)
		}

		candidate := &ShortURL{
			Code:        code,
			OriginalURL: rawURL,
			URLHash:     urlHash,
			CreatedAt:   r.now().UTC(),
		}

		if id, ok := r.counterID(code); ok {
			candidate.ID = id
		}

		err = r.store.Insert(ctx, candidate)
		if err == nil {
			r.logger.Debug("short url created",
				zap.String("code", string(code)),
				zap.Int("attempt", attempt),
			)

			if r.onCreate != nil {
				r.onCreate(ctx, candidate)
			}

			return shortenResult{shortURL: candidate, created: true}, nil
		}

		if dup, ok := AsDuplicateURL(err); ok {
			return shortenResult{shortURL: dup.Existing}, nil
		}

		if !errors.Is(err, ErrCodeTaken) {
			return shortenResult{}, fmt.Errorf("insert: %w", err)
		}

		r.logger.Debug("short code collision",
			zap.String("code", string(code)),
			zap.Int("attempt", attempt),
		)
	}

	r.logger.Warn("short code generation exhausted",
		zap.String("urlHash", string(urlHash)),
		zap.Int("attempts", r.maxAttempts),
	)

	return shortenResult{}, &GenerationExhaustedError{Attempts: r.maxAttempts}
}

// idDecoder is implemented by generators whose codes carry a numeric ID.
type idDecoder interface {
	DecodeID(code Code) (uint64, error)
}

func (r *Registry) counterID(code Code) (uint64, bool) {
	dec, ok := r.generator.(idDecoder)
	if !ok {
		return 0, false
	}

	id, err := dec.DecodeID(code)
	if err != nil {
		return 0, false
	}

	return id, true
}

// Resolve returns the mapping for code or ErrNotFound.
func (r *Registry) Resolve(ctx context.Context, code Code) (*ShortURL, error) {
	shortURL, err := r.store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("lookup by code: %w", err)
	}

	return shortURL, nil
}
