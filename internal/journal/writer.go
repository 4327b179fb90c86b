package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/serroba/url-shortener/internal/shortener"
	"go.uber.org/zap"
)

// Writer appends records to a journal file.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	logger *zap.Logger
}

// OpenWriter opens path for appending, creating it when missing.
func OpenWriter(path string, logger *zap.Logger) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	return &Writer{
		file:   file,
		enc:    json.NewEncoder(file),
		logger: logger,
	}, nil
}

// Append writes rec as one line and syncs the file. It has the shape of a
// messaging.Handler so it can consume the journal topic directly.
func (w *Writer) Append(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("write journal record: %w", err)
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}

	w.logger.Debug("journal record appended", zap.String("code", rec.Code))

	return nil
}

// Record appends shortURL. It lets the writer back a store directly, so the
// mapping is on disk before the store acknowledges it.
func (w *Writer) Record(ctx context.Context, shortURL *shortener.ShortURL) error {
	return w.Append(ctx, FromShortURL(shortURL))
}

// Shutdown closes the journal file.
func (w *Writer) Shutdown() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Close()
}
