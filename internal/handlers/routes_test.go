package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/url-shortener/internal/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	handler, _ := newTestHandler(t)

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))
	handlers.RegisterRoutes(api, handler)

	return router
}

func postShorten(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/shorten", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

type shortenBody struct {
	ShortURL    string `json:"shortUrl"`
	Code        string `json:"code"`
	OriginalURL string `json:"originalUrl"`
}

func TestRoutes(t *testing.T) {
	t.Run("shorten then redirect", func(t *testing.T) {
		router := newTestRouter(t)

		w := postShorten(router, `{"url":"https://example.com/foo"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var body shortenBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, testBaseURL+"/"+body.Code, body.ShortURL)
		assert.Equal(t, "https://example.com/foo", body.OriginalURL)

		req := httptest.NewRequest(http.MethodGet, "/"+body.Code, nil)
		rw := httptest.NewRecorder()
		router.ServeHTTP(rw, req)

		assert.Equal(t, http.StatusFound, rw.Code)
		assert.Equal(t, "https://example.com/foo", rw.Header().Get("Location"))
	})

	t.Run("repeated shorten is idempotent", func(t *testing.T) {
		router := newTestRouter(t)

		first := postShorten(router, `{"url":"https://example.com/foo"}`)
		second := postShorten(router, `{"url":"https://example.com/foo"}`)

		require.Equal(t, http.StatusOK, first.Code)
		require.Equal(t, http.StatusOK, second.Code)
		assert.JSONEq(t, first.Body.String(), second.Body.String())
	})

	t.Run("missing url is a bad request", func(t *testing.T) {
		router := newTestRouter(t)

		w := postShorten(router, `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid url is a bad request", func(t *testing.T) {
		router := newTestRouter(t)

		w := postShorten(router, `{"url":"not a url"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown code is not found", func(t *testing.T) {
		router := newTestRouter(t)

		req := httptest.NewRequest(http.MethodGet, "/zzzzzzzz", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
