// Package store provides entity storage for sensegraph using NATS KV,
// plus an optimistic transaction manager spanning all collections.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// Bucket is the narrow key-value surface the transaction manager works
// against. Backed by a JetStream KV bucket in production and by an
// in-memory bucket in embedded mode and tests.
type Bucket interface {
	// Get returns the value and revision for key, or ErrNotFound.
	Get(ctx context.Context, key string) (value []byte, revision uint64, err error)

	// Create stores a new key. Returns ErrConflict if the key exists.
	Create(ctx context.Context, key string, value []byte) (uint64, error)

	// Put stores a value regardless of the current revision.
	Put(ctx context.Context, key string, value []byte) (uint64, error)

	// Update stores a value only if the current revision matches.
	// Returns ErrConflict on a revision mismatch.
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys in the bucket. An empty bucket returns nil.
	Keys(ctx context.Context) ([]string, error)
}

// natsBucket adapts a jetstream.KeyValue to the Bucket interface,
// translating NATS errors to the store sentinels.
type natsBucket struct {
	kv jetstream.KeyValue
}

// NewNATSBucket wraps a JetStream KV bucket.
func NewNATSBucket(kv jetstream.KeyValue) Bucket {
	return &natsBucket{kv: kv}
}

func (b *natsBucket) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("kv get %s: %w", key, err)
	}
	return entry.Value(), entry.Revision(), nil
}

func (b *natsBucket) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := b.kv.Create(ctx, key, value)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return 0, fmt.Errorf("kv create %s: %w", key, ErrConflict)
		}
		return 0, fmt.Errorf("kv create %s: %w", key, err)
	}
	return rev, nil
}

func (b *natsBucket) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := b.kv.Put(ctx, key, value)
	if err != nil {
		return 0, fmt.Errorf("kv put %s: %w", key, err)
	}
	return rev, nil
}

func (b *natsBucket) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	rev, err := b.kv.Update(ctx, key, value, revision)
	if err != nil {
		// Any rejected CAS write is a conflict from the caller's view.
		if errors.Is(err, jetstream.ErrKeyExists) || strings.Contains(err.Error(), "wrong last sequence") {
			return 0, fmt.Errorf("kv update %s: %w", key, ErrConflict)
		}
		return 0, fmt.Errorf("kv update %s: %w", key, err)
	}
	return rev, nil
}

func (b *natsBucket) Delete(ctx context.Context, key string) error {
	if err := b.kv.Delete(ctx, key); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

func (b *natsBucket) Keys(ctx context.Context) ([]string, error) {
	keys, err := b.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("kv keys: %w", err)
	}
	return keys, nil
}
