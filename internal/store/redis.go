package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/url-shortener/internal/shortener"
)

// insertScript writes the code hash and the url hash index in one step.
// KEYS[1] code key, KEYS[2] hash index. ARGV: code, url hash, original url,
// created at (unix nanos), id.
var insertScript = redis.NewScript(`
local existing = redis.call('HGET', KEYS[2], ARGV[2])
if existing then
	return {'duplicate', existing}
end
if redis.call('EXISTS', KEYS[1]) == 1 then
	return {'taken', ARGV[1]}
end
redis.call('HSET', KEYS[1], 'code', ARGV[1], 'url_hash', ARGV[2], 'original_url', ARGV[3], 'created_at', ARGV[4], 'id', ARGV[5])
redis.call('HSET', KEYS[2], ARGV[2], ARGV[1])
return {'ok', ARGV[1]}
`)

// RedisStore is a Redis implementation of shortener.Repository and
// shortener.Sequence. Each mapping lives in a hash under prefix+code, the
// hash index maps url hashes to codes and seqKey holds the ID counter.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	hashKey string
	seqKey  string
}

// NewRedisStore creates a new Redis-backed URL store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:  client,
		prefix:  "shorturl:code:",
		hashKey: "shorturl:hashes",
		seqKey:  "shorturl:seq",
	}
}

func (r *RedisStore) Insert(ctx context.Context, shortURL *shortener.ShortURL) error {
	keys := []string{r.prefix + string(shortURL.Code), r.hashKey}

	res, err := insertScript.Run(ctx, r.client, keys,
		string(shortURL.Code),
		string(shortURL.URLHash),
		shortURL.OriginalURL,
		shortURL.CreatedAt.UnixNano(),
		shortURL.ID,
	).StringSlice()
	if err != nil {
		return err
	}

	if len(res) != 2 {
		return fmt.Errorf("unexpected insert script reply: %v", res)
	}

	switch res[0] {
	case "ok":
		return nil
	case "taken":
		return shortener.ErrCodeTaken
	case "duplicate":
		existing, err := r.GetByCode(ctx, shortener.Code(res[1]))
		if err != nil {
			return fmt.Errorf("load existing mapping: %w", err)
		}

		return &shortener.DuplicateURLError{Existing: existing}
	default:
		return fmt.Errorf("unexpected insert script status %q", res[0])
	}
}

func (r *RedisStore) GetByCode(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	fields, err := r.client.HGetAll(ctx, r.prefix+string(code)).Result()
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return nil, shortener.ErrNotFound
	}

	return decodeShortURL(fields), nil
}

func (r *RedisStore) GetByHash(ctx context.Context, hash shortener.URLHash) (*shortener.ShortURL, error) {
	code, err := r.client.HGet(ctx, r.hashKey, string(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	return r.GetByCode(ctx, shortener.Code(code))
}

// NextID increments the sequence key.
func (r *RedisStore) NextID(ctx context.Context) (uint64, error) {
	id, err := r.client.Incr(ctx, r.seqKey).Result()
	if err != nil {
		return 0, err
	}

	return uint64(id), nil
}

func encodeShortURL(url *shortener.ShortURL) map[string]any {
	return map[string]any{
		"code":         string(url.Code),
		"original_url": url.OriginalURL,
		"url_hash":     string(url.URLHash),
		"created_at":   url.CreatedAt.UnixNano(),
		"id":           url.ID,
	}
}

func decodeShortURL(fields map[string]string) *shortener.ShortURL {
	url := &shortener.ShortURL{
		Code:        shortener.Code(fields["code"]),
		OriginalURL: fields["original_url"],
		URLHash:     shortener.URLHash(fields["url_hash"]),
	}

	if ts, ok := fields["created_at"]; ok {
		if nanos, err := strconv.ParseInt(ts, 10, 64); err == nil {
			url.CreatedAt = time.Unix(0, nanos).UTC()
		}
	}

	if id, ok := fields["id"]; ok {
		if n, err := strconv.ParseUint(id, 10, 64); err == nil {
			url.ID = n
		}
	}

	return url
}

var (
	_ shortener.Repository = (*RedisStore)(nil)
	_ shortener.Sequence   = (*RedisStore)(nil)
)
