package store

import (
	"context"
	"encoding/json"
	"time"
)

type series[T any] struct {
	storage Storage
}

func (s *series[T]) Storage() Storage {
	return s.storage
}

func (s *series[T]) Append(ctx context.Context, key string, at time.Time, val T, ttl time.Duration) error {
	member, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.storage.Append(ctx, key, at.UnixMilli(), string(member), ttl)
}

func (s *series[T]) Count(ctx context.Context, key string, from, to time.Time) (int64, error) {
	return s.storage.Count(ctx, key, from.UnixMilli(), to.UnixMilli())
}

func (s *series[T]) Range(ctx context.Context, key string, from, to time.Time) ([]T, error) {
	members, err := s.storage.Range(ctx, key, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(members))
	for _, member := range members {
		var item T
		if err := json.Unmarshal([]byte(member), &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *series[T]) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.storage.Keys(ctx, pattern)
}

// NewSeries returns a JSON encoded series whose keys live under keyPrefix.
func NewSeries[T any](storage Storage, keyPrefix string) Series[T] {
	return &series[T]{
		storage: StorageWithPrefix(storage, keyPrefix),
	}
}
