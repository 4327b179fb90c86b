package store_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/serroba/url-shortener/internal/journal"
	"github.com/serroba/url-shortener/internal/shortener"
	"github.com/serroba/url-shortener/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newShortURL(code, url string) *shortener.ShortURL {
	return &shortener.ShortURL{
		Code:        shortener.Code(code),
		OriginalURL: url,
		URLHash:     shortener.HashURL(url),
	}
}

func TestMemoryStore_Insert(t *testing.T) {
	t.Run("inserts into both indices", func(t *testing.T) {
		s := store.NewMemoryStore()

		err := s.Insert(context.Background(), newShortURL("abc123", "https://example.com"))
		require.NoError(t, err)

		byCode, err := s.GetByCode(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", byCode.OriginalURL)

		byHash, err := s.GetByHash(context.Background(), shortener.HashURL("https://example.com"))
		require.NoError(t, err)
		assert.Equal(t, shortener.Code("abc123"), byHash.Code)
	})

	t.Run("rejects a taken code without touching the hash index", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Insert(context.Background(), newShortURL("abc123", "https://example.com")))

		err := s.Insert(context.Background(), newShortURL("abc123", "https://other.com"))

		require.ErrorIs(t, err, shortener.ErrCodeTaken)

		_, err = s.GetByHash(context.Background(), shortener.HashURL("https://other.com"))
		assert.ErrorIs(t, err, shortener.ErrNotFound)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("reports the existing mapping for a duplicate url", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Insert(context.Background(), newShortURL("abc123", "https://example.com")))

		err := s.Insert(context.Background(), newShortURL("zzz999", "https://example.com"))

		dup, ok := shortener.AsDuplicateURL(err)
		require.True(t, ok)
		assert.Equal(t, shortener.Code("abc123"), dup.Existing.Code)

		_, err = s.GetByCode(context.Background(), "zzz999")
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("returns context error when cancelled", func(t *testing.T) {
		s := store.NewMemoryStore()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := s.Insert(ctx, newShortURL("abc123", "https://example.com"))

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, s.Len())
	})

	t.Run("returned values are copies", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.Insert(context.Background(), newShortURL("abc123", "https://example.com")))

		got, _ := s.GetByCode(context.Background(), "abc123")
		got.OriginalURL = "https://mutated.com"

		again, _ := s.GetByCode(context.Background(), "abc123")
		assert.Equal(t, "https://example.com", again.OriginalURL)
	})
}

func TestMemoryStore_Get(t *testing.T) {
	t.Run("returns ErrNotFound when code does not exist", func(t *testing.T) {
		s := store.NewMemoryStore()

		url, err := s.GetByCode(context.Background(), "notfound")

		assert.Nil(t, url)
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("returns ErrNotFound when hash does not exist", func(t *testing.T) {
		s := store.NewMemoryStore()

		url, err := s.GetByHash(context.Background(), "nohash")

		assert.Nil(t, url)
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})
}

func TestMemoryStore_NextID(t *testing.T) {
	s := store.NewMemoryStore()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[uint64]struct{})
	)

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			id, err := s.NextID(context.Background())
			assert.NoError(t, err)

			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Len(t, ids, 50)
	assert.Contains(t, ids, uint64(1))
	assert.Contains(t, ids, uint64(50))
}

func TestMemoryStore_Restore(t *testing.T) {
	t.Run("restores mappings and resumes the sequence", func(t *testing.T) {
		s := store.NewMemoryStore()

		first := newShortURL("00000007", "https://example.com/a")
		first.ID = 7
		second := newShortURL("00000003", "https://example.com/b")
		second.ID = 3

		restored := s.Restore([]shortener.ShortURL{*first, *second})

		assert.Equal(t, 2, restored)

		id, err := s.NextID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(8), id)

		got, err := s.GetByHash(context.Background(), first.URLHash)
		require.NoError(t, err)
		assert.Equal(t, first.Code, got.Code)
	})

	t.Run("skips conflicting records", func(t *testing.T) {
		s := store.NewMemoryStore()

		restored := s.Restore([]shortener.ShortURL{
			*newShortURL("abc123", "https://example.com/a"),
			*newShortURL("abc123", "https://example.com/b"),
			*newShortURL("def456", "https://example.com/a"),
		})

		assert.Equal(t, 1, restored)
		assert.Equal(t, 1, s.Len())
	})
}

// recordingJournal keeps recorded codes and fails when err is set.
type recordingJournal struct {
	mu    sync.Mutex
	codes []shortener.Code
	err   error
}

func (j *recordingJournal) Record(_ context.Context, shortURL *shortener.ShortURL) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.err != nil {
		return j.err
	}

	j.codes = append(j.codes, shortURL.Code)

	return nil
}

func TestMemoryStore_Journal(t *testing.T) {
	t.Run("records every insert", func(t *testing.T) {
		j := &recordingJournal{}
		s := store.NewMemoryStore(store.WithJournal(j))

		require.NoError(t, s.Insert(context.Background(), newShortURL("abc123", "https://example.com/a")))
		require.NoError(t, s.Insert(context.Background(), newShortURL("def456", "https://example.com/b")))

		assert.Equal(t, []shortener.Code{"abc123", "def456"}, j.codes)
	})

	t.Run("rejected inserts are not recorded", func(t *testing.T) {
		j := &recordingJournal{}
		s := store.NewMemoryStore(store.WithJournal(j))

		require.NoError(t, s.Insert(context.Background(), newShortURL("abc123", "https://example.com/a")))
		require.ErrorIs(t, s.Insert(context.Background(), newShortURL("abc123", "https://example.com/b")), shortener.ErrCodeTaken)

		assert.Len(t, j.codes, 1)
	})

	t.Run("a failed record leaves the store unchanged", func(t *testing.T) {
		errDisk := errors.New("disk full")
		s := store.NewMemoryStore(store.WithJournal(&recordingJournal{err: errDisk}))
		url := newShortURL("abc123", "https://example.com/a")

		err := s.Insert(context.Background(), url)

		require.ErrorIs(t, err, errDisk)
		assert.Equal(t, 0, s.Len())

		_, err = s.GetByHash(context.Background(), url.URLHash)
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("restored records are not recorded again", func(t *testing.T) {
		j := &recordingJournal{}
		s := store.NewMemoryStore(store.WithJournal(j))

		s.Restore([]shortener.ShortURL{*newShortURL("abc123", "https://example.com/a")})

		assert.Empty(t, j.codes)
	})
}

func TestMemoryStore_JournalSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	open := func() *shortener.Registry {
		urls, err := journal.Load(path)
		require.NoError(t, err)

		w, err := journal.OpenWriter(path, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = w.Shutdown() })

		s := store.NewMemoryStore(store.WithJournal(w))
		s.Restore(urls)

		gen, err := shortener.NewGenerator(shortener.StrategyCounter, shortener.DefaultCodeLength, s)
		require.NoError(t, err)

		return shortener.NewRegistry(s, gen, zap.NewNop())
	}

	issued := make(map[shortener.Code]string)

	before := open()

	for i := range 5 {
		url := fmt.Sprintf("https://example.com/before/%d", i)

		shortURL, _, err := before.Shorten(context.Background(), url)
		require.NoError(t, err)

		issued[shortURL.Code] = url
	}

	// The first registry is abandoned without any shutdown, as after a crash.
	after := open()

	for code, url := range issued {
		got, err := after.Resolve(context.Background(), code)
		require.NoError(t, err)
		assert.Equal(t, url, got.OriginalURL)
	}

	shortURL, created, err := after.Shorten(context.Background(), "https://example.com/after")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotContains(t, issued, shortURL.Code)
	assert.Equal(t, uint64(6), shortURL.ID)
}
