package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/serroba/url-shortener/internal/shortener"
)

// Journal durably records a mapping. The memory store calls it before a new
// mapping becomes visible.
type Journal interface {
	Record(ctx context.Context, shortURL *shortener.ShortURL) error
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithJournal makes every insert durable in j before it is acknowledged.
// An insert whose record cannot be written fails and changes nothing.
func WithJournal(j Journal) MemoryOption {
	return func(m *MemoryStore) {
		m.journal = j
	}
}

// MemoryStore is an in-memory implementation of shortener.Repository and
// shortener.Sequence. One lock guards both indices so an insert is never
// partially visible.
type MemoryStore struct {
	mu      sync.RWMutex
	codes   map[shortener.Code]*shortener.ShortURL
	hashes  map[shortener.URLHash]shortener.Code
	seq     atomic.Uint64
	journal Journal
}

// NewMemoryStore creates a new in-memory URL store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		codes:  make(map[shortener.Code]*shortener.ShortURL),
		hashes: make(map[shortener.URLHash]shortener.Code),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *MemoryStore) GetByCode(_ context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url, ok := m.codes[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return clone(url), nil
}

func (m *MemoryStore) GetByHash(_ context.Context, hash shortener.URLHash) (*shortener.ShortURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	code, ok := m.hashes[hash]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return clone(m.codes[code]), nil
}

func (m *MemoryStore) Insert(ctx context.Context, shortURL *shortener.ShortURL) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(shortURL); err != nil {
		return err
	}

	if m.journal != nil {
		if err := m.journal.Record(ctx, shortURL); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	m.putLocked(shortURL)

	return nil
}

func (m *MemoryStore) checkLocked(shortURL *shortener.ShortURL) error {
	if code, ok := m.hashes[shortURL.URLHash]; ok {
		return &shortener.DuplicateURLError{Existing: clone(m.codes[code])}
	}

	if _, ok := m.codes[shortURL.Code]; ok {
		return shortener.ErrCodeTaken
	}

	return nil
}

func (m *MemoryStore) putLocked(shortURL *shortener.ShortURL) {
	stored := *shortURL
	m.codes[stored.Code] = &stored
	m.hashes[stored.URLHash] = stored.Code
}

func clone(url *shortener.ShortURL) *shortener.ShortURL {
	cp := *url

	return &cp
}

// NextID returns the next counter value, starting at 1.
func (m *MemoryStore) NextID(_ context.Context) (uint64, error) {
	return m.seq.Add(1), nil
}

// Restore loads previously persisted mappings and moves the sequence past the
// highest restored ID. Records that conflict with existing entries are skipped.
// Restored records are not written to the journal again.
func (m *MemoryStore) Restore(urls []shortener.ShortURL) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	restored := 0

	for i := range urls {
		if err := m.checkLocked(&urls[i]); err != nil {
			continue
		}

		m.putLocked(&urls[i])
		restored++

		for {
			current := m.seq.Load()
			if urls[i].ID <= current || m.seq.CompareAndSwap(current, urls[i].ID) {
				break
			}
		}
	}

	return restored
}

// Len returns the number of stored mappings.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.codes)
}

var (
	_ shortener.Repository = (*MemoryStore)(nil)
	_ shortener.Sequence   = (*MemoryStore)(nil)
)
