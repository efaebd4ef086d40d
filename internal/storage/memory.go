package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a process-local KVStore. Every write to a key, whether
// Set, Del or Update, holds that key's lock, so a plain write cannot land
// inside another caller's read-modify-write. Writes to different keys
// proceed independently.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	locksMu sync.Mutex
	locks   map[string]*keyLock
}

// keyLock is dropped from the table once nobody holds or waits for it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string][]byte),
		locks: make(map[string]*keyLock),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.lock(key)
	defer s.unlock(key)

	s.put(key, value)
	return nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	// Sorted and deduplicated so two multi-key deletes cannot deadlock.
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			uniq = append(uniq, key)
		}
	}
	sort.Strings(uniq)

	for _, key := range uniq {
		s.lock(key)
	}
	defer func() {
		for _, key := range uniq {
			s.unlock(key)
		}
	}()

	s.mu.Lock()
	for _, key := range uniq {
		delete(s.data, key)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetByPrefix(_ context.Context, prefix string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out [][]byte
	for key, v := range s.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, clone(v))
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	s.lock(key)
	defer s.unlock(key)

	if err := ctx.Err(); err != nil {
		return err
	}

	current, _, _ := s.Get(ctx, key)
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		s.mu.Lock()
		delete(s.data, key)
		s.mu.Unlock()
		return nil
	}
	s.put(key, next)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// lockedKeys reports how many per-key locks are currently allocated.
func (s *MemoryStore) lockedKeys() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}

func (s *MemoryStore) put(key string, value []byte) {
	s.mu.Lock()
	s.data[key] = clone(value)
	s.mu.Unlock()
}

func (s *MemoryStore) lock(key string) {
	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
}

func (s *MemoryStore) unlock(key string) {
	s.locksMu.Lock()
	l := s.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.locksMu.Unlock()

	l.mu.Unlock()
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
