package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/url-shortener/internal/handlers"
	"github.com/serroba/url-shortener/internal/shortener"
	"github.com/serroba/url-shortener/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBaseURL = "http://localhost:8888"
	testURL     = "https://example.com/very/long/path"
)

var errBackend = errors.New("backend unavailable")

func newTestHandler(t *testing.T) (*handlers.URLHandler, *shortener.Registry) {
	t.Helper()

	memStore := store.NewMemoryStore()

	gen, err := shortener.NewGenerator(shortener.StrategyCounter, shortener.DefaultCodeLength, memStore)
	require.NoError(t, err)

	registry := shortener.NewRegistry(memStore, gen, zap.NewNop())

	return handlers.NewURLHandler(registry, testBaseURL, zap.NewNop()), registry
}

// stubShortener returns fixed results.
type stubShortener struct {
	shortenErr error
	resolveErr error
}

func (s *stubShortener) Shorten(_ context.Context, _ string) (*shortener.ShortURL, bool, error) {
	return nil, false, s.shortenErr
}

func (s *stubShortener) Resolve(_ context.Context, _ shortener.Code) (*shortener.ShortURL, error) {
	return nil, s.resolveErr
}

func statusOf(t *testing.T, err error) int {
	t.Helper()

	var se huma.StatusError
	require.ErrorAs(t, err, &se)

	return se.GetStatus()
}

func createRequest(url string) *handlers.CreateShortURLRequest {
	req := &handlers.CreateShortURLRequest{}
	req.Body.URL = url

	return req
}

func TestCreateShortURL(t *testing.T) {
	t.Run("creates short url", func(t *testing.T) {
		handler, _ := newTestHandler(t)

		resp, err := handler.CreateShortURL(context.Background(), createRequest(testURL))

		require.NoError(t, err)
		assert.Equal(t, "00000001", resp.Body.Code)
		assert.Equal(t, testBaseURL+"/00000001", resp.Body.ShortURL)
		assert.Equal(t, testURL, resp.Body.OriginalURL)
	})

	t.Run("returns the same code for the same url", func(t *testing.T) {
		handler, _ := newTestHandler(t)

		first, err := handler.CreateShortURL(context.Background(), createRequest(testURL))
		require.NoError(t, err)

		second, err := handler.CreateShortURL(context.Background(), createRequest(testURL))
		require.NoError(t, err)

		assert.Equal(t, first.Body, second.Body)
	})

	t.Run("returns different codes for different urls", func(t *testing.T) {
		handler, _ := newTestHandler(t)

		foo, err := handler.CreateShortURL(context.Background(), createRequest("https://example.com/foo"))
		require.NoError(t, err)

		bar, err := handler.CreateShortURL(context.Background(), createRequest("https://example.com/bar"))
		require.NoError(t, err)

		assert.NotEqual(t, foo.Body.Code, bar.Body.Code)
	})

	t.Run("trims trailing slash from base url", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		gen := shortener.NewHashGenerator(shortener.DefaultCodeLength)
		handler := handlers.NewURLHandler(
			shortener.NewRegistry(memStore, gen, zap.NewNop()),
			"https://sho.rt/",
			zap.NewNop(),
		)

		resp, err := handler.CreateShortURL(context.Background(), createRequest(testURL))

		require.NoError(t, err)
		assert.Equal(t, "https://sho.rt/"+resp.Body.Code, resp.Body.ShortURL)
	})

	invalid := []struct {
		name string
		url  string
	}{
		{name: "empty", url: ""},
		{name: "no scheme", url: "example.com/path"},
		{name: "unsupported scheme", url: "ftp://example.com/file"},
		{name: "garbage", url: "not a url"},
	}

	for _, tt := range invalid {
		t.Run("rejects "+tt.name+" url with 400", func(t *testing.T) {
			handler, _ := newTestHandler(t)

			resp, err := handler.CreateShortURL(context.Background(), createRequest(tt.url))

			assert.Nil(t, resp)
			assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
		})
	}
}

func TestCreateShortURL_ErrorPaths(t *testing.T) {
	t.Run("returns 500 when generation is exhausted", func(t *testing.T) {
		handler := handlers.NewURLHandler(&stubShortener{
			shortenErr: &shortener.GenerationExhaustedError{Attempts: 5},
		}, testBaseURL, zap.NewNop())

		resp, err := handler.CreateShortURL(context.Background(), createRequest(testURL))

		assert.Nil(t, resp)
		assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	})

	t.Run("returns 500 on backend failure", func(t *testing.T) {
		handler := handlers.NewURLHandler(&stubShortener{shortenErr: errBackend}, testBaseURL, zap.NewNop())

		resp, err := handler.CreateShortURL(context.Background(), createRequest(testURL))

		assert.Nil(t, resp)
		assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	})
}

func TestRedirectToURL(t *testing.T) {
	t.Run("redirects to original url", func(t *testing.T) {
		handler, registry := newTestHandler(t)

		shortURL, _, err := registry.Shorten(context.Background(), testURL)
		require.NoError(t, err)

		resp, err := handler.RedirectToURL(context.Background(), &handlers.RedirectRequest{Code: string(shortURL.Code)})

		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.Status)
		assert.Equal(t, testURL, resp.Location)
	})

	t.Run("returns 404 when code not found", func(t *testing.T) {
		handler, _ := newTestHandler(t)

		resp, err := handler.RedirectToURL(context.Background(), &handlers.RedirectRequest{Code: "notfound"})

		assert.Nil(t, resp)
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})

	t.Run("returns 500 on backend failure", func(t *testing.T) {
		handler := handlers.NewURLHandler(&stubShortener{resolveErr: errBackend}, testBaseURL, zap.NewNop())

		resp, err := handler.RedirectToURL(context.Background(), &handlers.RedirectRequest{Code: "abc123"})

		assert.Nil(t, resp)
		assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	})
}
