package storage

import (
	"buddychat/backend/internal/config"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a KVStore on Redis. Update uses WATCH/MULTI optimistic
// transactions, retried when another client touched the key first.
type RedisStore struct {
	Redis *redis.Client
	// TTL, when positive, is applied on every write. Keys untouched for
	// TTL expire, which is how abandoned sessions are collected.
	TTL time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{Redis: rdb, TTL: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.Redis.Set(ctx, key, value, s.TTL).Err()
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.Redis.Del(ctx, keys...).Err()
}

// GetByPrefix walks the keyspace with SCAN and fetches matches in MGET
// batches. Keys that expire between the two steps are skipped.
func (s *RedisStore) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	var (
		out   [][]byte
		batch []string
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		values, err := s.Redis.MGet(ctx, batch...).Result()
		if err != nil {
			return err
		}
		for _, v := range values {
			if str, ok := v.(string); ok {
				out = append(out, []byte(str))
			}
		}
		batch = batch[:0]
		return nil
	}

	iter := s.Redis.Scan(ctx, 0, escapeGlob(prefix)+"*", config.ScanBatchSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= config.ScanBatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, next, s.TTL)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < config.MaxUpdateRetries; attempt++ {
		err := s.Redis.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	log.Printf("WARNING: Redis update of %s gave up after %d attempts", key, config.MaxUpdateRetries)
	return fmt.Errorf("%w: %s", ErrConflict, key)
}

func (s *RedisStore) Close() error {
	return s.Redis.Close()
}

// escapeGlob quotes the characters SCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
