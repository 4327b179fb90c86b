package shortener

import "context"

// Repository stores mappings under two indices, by code and by URL hash.
type Repository interface {
	GetByCode(ctx context.Context, code Code) (*ShortURL, error)
	GetByHash(ctx context.Context, hash URLHash) (*ShortURL, error)

	// Insert writes both indices or neither. It returns ErrCodeTaken when the
	// code is in use and a *DuplicateURLError when the hash is already mapped.
	Insert(ctx context.Context, shortURL *ShortURL) error
}

// Sequence hands out monotonically increasing identifiers starting at 1.
type Sequence interface {
	NextID(ctx context.Context) (uint64, error)
}
