package store

import (
	"context"
	"fmt"
	"sync"
)

// memBucket is an in-memory Bucket with the same CAS semantics as the
// NATS-backed one.
type memBucket struct {
	mu       sync.Mutex
	values   map[string][]byte
	revs     map[string]uint64
	revCount uint64
}

// NewMemBucket creates an empty in-memory bucket.
func NewMemBucket() Bucket {
	return &memBucket{
		values: make(map[string][]byte),
		revs:   make(map[string]uint64),
	}
}

func (b *memBucket) Get(_ context.Context, key string) ([]byte, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	value, ok := b.values[key]
	if !ok {
		return nil, 0, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, b.revs[key], nil
}

func (b *memBucket) Create(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.values[key]; ok {
		return 0, fmt.Errorf("kv create %s: %w", key, ErrConflict)
	}
	return b.set(key, value), nil
}

func (b *memBucket) Put(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.set(key, value), nil
}

func (b *memBucket) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.revs[key] != revision {
		return 0, fmt.Errorf("kv update %s: %w", key, ErrConflict)
	}
	return b.set(key, value), nil
}

func (b *memBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.values, key)
	delete(b.revs, key)
	return nil
}

func (b *memBucket) Keys(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.values))
	for key := range b.values {
		keys = append(keys, key)
	}
	return keys, nil
}

// set stores a copy of value under key and bumps the revision.
// Callers must hold the mutex.
func (b *memBucket) set(key string, value []byte) uint64 {
	stored := make([]byte, len(value))
	copy(stored, value)
	b.revCount++
	b.values[key] = stored
	b.revs[key] = b.revCount
	return b.revCount
}
