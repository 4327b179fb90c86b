package shortener

import "time"

// Code represents a short URL code.
type Code string

// URLHash represents a hash of a normalized URL.
type URLHash string

// ShortURL represents a shortened URL entity.
type ShortURL struct {
	ID          uint64 // counter value that produced Code, zero for other generators
	Code        Code
	OriginalURL string
	URLHash     URLHash
	CreatedAt   time.Time
}
