// Package storage implements the key-value store every coordination
// component persists through, with in-memory, Redis and Postgres backends.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrConflict is returned by Update when the key kept changing underneath
// the read-modify-write and the retry budget ran out.
var ErrConflict = errors.New("storage: concurrent update conflict")

// UpdateFunc computes the next value of a key from its current value.
// current is nil when the key is absent. Returning a nil next deletes the
// key; returning an error aborts the update without writing anything.
type UpdateFunc func(current []byte) (next []byte, err error)

// KVStore is a mapping from string keys to JSON documents.
//
// Get never fails for a missing key; it reports found=false instead.
// Set is a total overwrite. Del is idempotent. GetByPrefix returns values in
// no particular order. Update is an atomic read-modify-write of one key; it
// is the only primitive callers may use when a write depends on a read.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
	GetByPrefix(ctx context.Context, prefix string) ([][]byte, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}

// GetJSON loads key into dest. It reports false when the key is absent.
func GetJSON(ctx context.Context, kv KVStore, key string, dest any) (bool, error) {
	raw, found, err := kv.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores the JSON encoding of value under key.
func SetJSON(ctx context.Context, kv KVStore, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, raw)
}

// UpdateJSON is Update for typed documents. fn receives nil when the key is
// absent and returns the value to store, or nil to delete the key.
func UpdateJSON[T any](ctx context.Context, kv KVStore, key string, fn func(current *T) (*T, error)) error {
	return kv.Update(ctx, key, func(raw []byte) ([]byte, error) {
		var current *T
		if raw != nil {
			current = new(T)
			if err := json.Unmarshal(raw, current); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
		}

		next, err := fn(current)
		if err != nil || next == nil {
			return nil, err
		}
		return json.Marshal(next)
	})
}

// ScanJSON decodes every value under prefix into a T. Values that fail to
// decode are skipped and reported through the returned count.
func ScanJSON[T any](ctx context.Context, kv KVStore, prefix string) ([]T, int, error) {
	raws, err := kv.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, 0, err
	}

	out := make([]T, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped, nil
}
