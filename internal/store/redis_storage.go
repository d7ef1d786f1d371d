package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/khanghh/donorshield/params"
	"github.com/redis/go-redis/v9"
)

// RedisStorage implements Storage over the managed connection. Every call
// asks the manager for the current client, and a connection error resets
// the manager so the next call reconnects.
type RedisStorage struct {
	manager *Manager
}

func (s *RedisStorage) Manager() *Manager {
	return s.manager
}

func (s *RedisStorage) do(ctx context.Context, fn func(rdb redis.UniversalClient) error) error {
	rdb, err := s.manager.GetClient(ctx)
	if err != nil {
		return err
	}
	err = fn(rdb)
	if isConnectionError(err) {
		s.manager.Invalidate(rdb)
	}
	return err
}

func (s *RedisStorage) Append(ctx context.Context, key string, score int64, member string, ttl time.Duration) error {
	return s.do(ctx, func(rdb redis.UniversalClient) error {
		pipe := rdb.Pipeline()
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: member})
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
}

func (s *RedisStorage) Count(ctx context.Context, key string, min, max int64) (int64, error) {
	var count int64
	err := s.do(ctx, func(rdb redis.UniversalClient) error {
		var err error
		count, err = rdb.ZCount(ctx, key, strconv.FormatInt(min, 10), strconv.FormatInt(max, 10)).Result()
		return err
	})
	return count, err
}

func (s *RedisStorage) Range(ctx context.Context, key string, min, max int64) ([]string, error) {
	var members []string
	err := s.do(ctx, func(rdb redis.UniversalClient) error {
		var err error
		members, err = rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min: strconv.FormatInt(min, 10),
			Max: strconv.FormatInt(max, 10),
		}).Result()
		return err
	})
	return members, err
}

func (s *RedisStorage) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := s.do(ctx, func(rdb redis.UniversalClient) error {
		var cursor uint64
		for {
			batch, next, err := rdb.Scan(ctx, cursor, pattern, params.StoreScanCount).Result()
			if err != nil {
				return err
			}
			keys = append(keys, batch...)
			if next == 0 {
				return nil
			}
			cursor = next
		}
	})
	return keys, err
}

func (s *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := s.do(ctx, func(rdb redis.UniversalClient) error {
		var err error
		val, err = rdb.Get(ctx, key).Result()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (s *RedisStorage) Set(ctx context.Context, key string, val string, expiresIn time.Duration) error {
	return s.do(ctx, func(rdb redis.UniversalClient) error {
		return rdb.Set(ctx, key, val, max(expiresIn, 0)).Err()
	})
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	var deleted int64
	err := s.do(ctx, func(rdb redis.UniversalClient) error {
		var err error
		deleted, err = rdb.Del(ctx, key).Result()
		return err
	})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func NewRedisStorage(manager *Manager) *RedisStorage {
	return &RedisStorage{
		manager: manager,
	}
}
