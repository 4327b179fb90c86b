package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/serroba/url-shortener/internal/shortener"
)

// maxLineSize bounds a single journal line; URLs are capped well below it.
const maxLineSize = 64 * 1024

// Load reads every record from the journal at path. A missing file yields no
// records. A malformed final line is ignored since it is what an interrupted
// append leaves behind; malformed lines elsewhere are an error.
func Load(path string) ([]shortener.ShortURL, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	return Read(file)
}

// Read decodes journal lines from r.
func Read(r io.Reader) ([]shortener.ShortURL, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	var (
		urls    []shortener.ShortURL
		badLine int
	)

	line := 0

	for scanner.Scan() {
		line++

		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		if badLine != 0 {
			return nil, fmt.Errorf("journal line %d: malformed record", badLine)
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil || rec.Code == "" || rec.URLHash == "" {
			badLine = line

			continue
		}

		urls = append(urls, rec.ShortURL())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	return urls, nil
}
