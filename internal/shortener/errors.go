package shortener

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no mapping exists for a code or URL hash.
	ErrNotFound = errors.New("short url not found")

	// ErrInvalidURL matches every InvalidURLError.
	ErrInvalidURL = errors.New("invalid url")

	// ErrGenerationExhausted matches every GenerationExhaustedError.
	ErrGenerationExhausted = errors.New("short code generation exhausted")

	// ErrCodeTaken is returned by repositories when the code of an insert is already mapped.
	ErrCodeTaken = errors.New("short code already taken")
)

// InvalidURLError reports a long URL rejected before any mutation.
type InvalidURLError struct {
	URL    string
	Reason string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid url %q: %s", e.URL, e.Reason)
}

func (e *InvalidURLError) Is(target error) bool {
	return target == ErrInvalidURL
}

// GenerationExhaustedError reports that no free code was found within the retry budget.
type GenerationExhaustedError struct {
	Attempts int
	Err      error
}

func (e *GenerationExhaustedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("short code generation exhausted after %d attempts: %v", e.Attempts, e.Err)
	}

	return fmt.Sprintf("short code generation exhausted after %d attempts", e.Attempts)
}

func (e *GenerationExhaustedError) Is(target error) bool {
	return target == ErrGenerationExhausted
}

func (e *GenerationExhaustedError) Unwrap() error {
	return e.Err
}

// DuplicateURLError is returned by repositories when the URL hash of an insert
// is already mapped. Existing holds the mapping that won.
type DuplicateURLError struct {
	Existing *ShortURL
}

func (e *DuplicateURLError) Error() string {
	return fmt.Sprintf("url already mapped to code %q", e.Existing.Code)
}

// AsDuplicateURL extracts a DuplicateURLError from err.
func AsDuplicateURL(err error) (*DuplicateURLError, bool) {
	var dup *DuplicateURLError
	if errors.As(err, &dup) {
		return dup, true
	}

	return nil, false
}
