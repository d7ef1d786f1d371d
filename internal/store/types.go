package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrMissingURL       = errors.New("missing redis url")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrManagerClosed    = errors.New("connection manager closed")
)

// Storage is the subset of key-value operations the security subsystem
// needs: time-scored series plus plain string values.
type Storage interface {
	// Append adds member to the series at key with the given score and
	// refreshes the expiry of the whole key.
	Append(ctx context.Context, key string, score int64, member string, ttl time.Duration) error
	// Count returns the number of members with min <= score <= max.
	Count(ctx context.Context, key string, min, max int64) (int64, error)
	// Range returns the members with min <= score <= max in ascending score order.
	Range(ctx context.Context, key string, min, max int64) ([]string, error)
	// Keys returns every key matching the glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, val string, expiresIn time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Series[T any] interface {
	Storage() Storage
	Append(ctx context.Context, key string, at time.Time, val T, ttl time.Duration) error
	Count(ctx context.Context, key string, from, to time.Time) (int64, error)
	Range(ctx context.Context, key string, from, to time.Time) ([]T, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
}
