package store

import (
	"context"
	"strings"
	"time"
)

type prefixedStorage struct {
	underlying Storage
	prefix     string
}

func (p *prefixedStorage) Append(ctx context.Context, key string, score int64, member string, ttl time.Duration) error {
	return p.underlying.Append(ctx, p.prefix+key, score, member, ttl)
}

func (p *prefixedStorage) Count(ctx context.Context, key string, min, max int64) (int64, error) {
	return p.underlying.Count(ctx, p.prefix+key, min, max)
}

func (p *prefixedStorage) Range(ctx context.Context, key string, min, max int64) ([]string, error) {
	return p.underlying.Range(ctx, p.prefix+key, min, max)
}

func (p *prefixedStorage) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := p.underlying.Keys(ctx, EscapePattern(p.prefix)+pattern)
	if err != nil {
		return nil, err
	}
	for i, key := range keys {
		keys[i] = strings.TrimPrefix(key, p.prefix)
	}
	return keys, nil
}

func (p *prefixedStorage) Get(ctx context.Context, key string) (string, error) {
	return p.underlying.Get(ctx, p.prefix+key)
}

func (p *prefixedStorage) Set(ctx context.Context, key string, val string, expiresIn time.Duration) error {
	return p.underlying.Set(ctx, p.prefix+key, val, expiresIn)
}

func (p *prefixedStorage) Delete(ctx context.Context, key string) error {
	return p.underlying.Delete(ctx, p.prefix+key)
}

func StorageWithPrefix(storage Storage, prefix string) Storage {
	if prefix == "" {
		return storage
	}
	return &prefixedStorage{
		underlying: storage,
		prefix:     prefix,
	}
}

// EscapePattern quotes the glob metacharacters of s so it matches literally
// in a SCAN MATCH pattern.
func EscapePattern(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch ch {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(ch)
	}
	return b.String()
}
