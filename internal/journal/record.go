// Package journal keeps an append-only JSON-lines log of created mappings.
// The server publishes a Record for every new mapping; the consumer appends
// them to the journal file, and the memory backend replays it on start-up.
package journal

import (
	"time"

	"github.com/serroba/url-shortener/internal/shortener"
)

// Topic is the stream new mappings are published on.
const Topic = "shorturl.created"

// Record is one created mapping.
type Record struct {
	ID          uint64    `json:"id,omitempty"`
	Code        string    `json:"code"`
	OriginalURL string    `json:"originalUrl"`
	URLHash     string    `json:"urlHash"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FromShortURL builds the record for a mapping.
func FromShortURL(url *shortener.ShortURL) *Record {
	return &Record{
		ID:          url.ID,
		Code:        string(url.Code),
		OriginalURL: url.OriginalURL,
		URLHash:     string(url.URLHash),
		CreatedAt:   url.CreatedAt,
	}
}

// ShortURL converts the record back to a mapping.
func (r *Record) ShortURL() shortener.ShortURL {
	return shortener.ShortURL{
		ID:          r.ID,
		Code:        shortener.Code(r.Code),
		OriginalURL: r.OriginalURL,
		URLHash:     shortener.URLHash(r.URLHash),
		CreatedAt:   r.CreatedAt,
	}
}
