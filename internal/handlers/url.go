package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/url-shortener/internal/middleware"
	"github.com/serroba/url-shortener/internal/shortener"
	"go.uber.org/zap"
)

// Shortener is the part of the registry the HTTP layer needs.
type Shortener interface {
	Shorten(ctx context.Context, rawURL string) (*shortener.ShortURL, bool, error)
	Resolve(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error)
}

// URLHandler handles URL shortening operations.
type URLHandler struct {
	registry Shortener
	baseURL  string
	logger   *zap.Logger
}

// NewURLHandler creates a new URL handler. Short URLs are rendered as
// baseURL + "/" + code.
func NewURLHandler(registry Shortener, baseURL string, logger *zap.Logger) *URLHandler {
	return &URLHandler{
		registry: registry,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

func (h *URLHandler) CreateShortURL(ctx context.Context, req *CreateShortURLRequest) (*CreateShortURLResponse, error) {
	logger := middleware.LoggerFromContext(ctx, h.logger)

	shortURL, created, err := h.registry.Shorten(ctx, req.Body.URL)
	if err != nil {
		if errors.Is(err, shortener.ErrInvalidURL) {
			return nil, huma.Error400BadRequest(err.Error())
		}

		if errors.Is(err, shortener.ErrGenerationExhausted) {
			logger.Error("short code generation exhausted", zap.Error(err))

			return nil, huma.Error500InternalServerError("could not allocate a short code")
		}

		logger.Error("failed to shorten url", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to save url")
	}

	if created {
		logger.Info("short url created", zap.String("code", string(shortURL.Code)))
	}

	resp := &CreateShortURLResponse{}
	resp.Body.ShortURL = h.baseURL + "/" + string(shortURL.Code)
	resp.Body.Code = string(shortURL.Code)
	resp.Body.OriginalURL = shortURL.OriginalURL

	return resp, nil
}

func (h *URLHandler) RedirectToURL(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	shortURL, err := h.registry.Resolve(ctx, shortener.Code(req.Code))
	if err != nil {
		if errors.Is(err, shortener.ErrNotFound) {
			return nil, huma.Error404NotFound("short url not found")
		}

		middleware.LoggerFromContext(ctx, h.logger).Error("failed to resolve code",
			zap.String("code", req.Code),
			zap.Error(err),
		)

		return nil, huma.Error500InternalServerError("failed to get url")
	}

	return &RedirectResponse{
		Status:   http.StatusFound,
		Location: shortURL.OriginalURL,
	}, nil
}
