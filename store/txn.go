package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultTxnAttempts is the bounded retry budget for conflicting
// transactions.
const DefaultTxnAttempts = 5

type opKind int

const (
	opCreate opKind = iota
	opPut
	opDelete
)

type writeOp struct {
	collection Collection
	key        string
	kind       opKind
	value      []byte
}

type readRec struct {
	value    []byte
	revision uint64
	found    bool
}

// Txn is a transaction handle offering read-your-writes access to every
// collection. Reads are cached with their KV revisions; writes are
// buffered and applied with compare-and-swap at commit time. A Txn is
// safe for concurrent use so callers can fan out reads.
type Txn struct {
	store *Store

	mu       sync.Mutex
	reads    map[string]readRec
	writes   []writeOp
	writeIdx map[string]int
}

func newTxn(s *Store) *Txn {
	return &Txn{
		store:    s,
		reads:    make(map[string]readRec),
		writeIdx: make(map[string]int),
	}
}

func txnKey(collection Collection, key string) string {
	return string(collection) + "/" + key
}

// Get returns the value for key in collection, or ErrNotFound. Values
// written earlier in the same transaction are visible.
func (tx *Txn) Get(ctx context.Context, collection Collection, key string) ([]byte, error) {
	tx.mu.Lock()
	ck := txnKey(collection, key)

	if idx, ok := tx.writeIdx[ck]; ok {
		op := tx.writes[idx]
		tx.mu.Unlock()
		if op.kind == opDelete {
			return nil, ErrNotFound
		}
		return cloneBytes(op.value), nil
	}

	if rec, ok := tx.reads[ck]; ok {
		tx.mu.Unlock()
		if !rec.found {
			return nil, ErrNotFound
		}
		return cloneBytes(rec.value), nil
	}
	tx.mu.Unlock()

	value, revision, err := tx.store.Bucket(collection).Get(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	tx.mu.Lock()
	tx.reads[ck] = readRec{value: value, revision: revision, found: err == nil}
	tx.mu.Unlock()

	if err != nil {
		return nil, ErrNotFound
	}
	return cloneBytes(value), nil
}

// Create buffers the creation of a new key. It fails with ErrConflict
// immediately if the key is already visible to this transaction; a
// concurrent creation elsewhere is caught at commit time.
func (tx *Txn) Create(ctx context.Context, collection Collection, key string, value []byte) error {
	if _, err := tx.Get(ctx, collection, key); err == nil {
		return fmt.Errorf("create %s/%s: %w", collection, key, ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	tx.append(writeOp{collection: collection, key: key, kind: opCreate, value: cloneBytes(value)})
	return nil
}

// Put buffers an upsert of key.
func (tx *Txn) Put(_ context.Context, collection Collection, key string, value []byte) error {
	tx.append(writeOp{collection: collection, key: key, kind: opPut, value: cloneBytes(value)})
	return nil
}

// Delete buffers the removal of key. Deleting an absent key is not an
// error.
func (tx *Txn) Delete(_ context.Context, collection Collection, key string) error {
	tx.append(writeOp{collection: collection, key: key, kind: opDelete})
	return nil
}

// Keys returns all keys of a collection as visible to this transaction,
// merging the committed state with buffered writes.
func (tx *Txn) Keys(ctx context.Context, collection Collection) ([]string, error) {
	committed, err := tx.store.Bucket(collection).Keys(ctx)
	if err != nil {
		return nil, err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	visible := make(map[string]bool, len(committed))
	for _, key := range committed {
		visible[key] = true
	}
	for _, op := range tx.writes {
		if op.collection != collection {
			continue
		}
		visible[op.key] = op.kind != opDelete
	}

	keys := make([]string, 0, len(visible))
	for key, ok := range visible {
		if ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (tx *Txn) append(op writeOp) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.writes = append(tx.writes, op)
	tx.writeIdx[txnKey(op.collection, op.key)] = len(tx.writes) - 1
}

// commit applies the buffered writes with compare-and-swap checks.
// On a CAS conflict it undoes the writes already applied and returns
// ErrConflict so the manager can re-execute the callback.
func (tx *Txn) commit(ctx context.Context) error {
	tx.mu.Lock()
	// Only the final buffered op per key is applied, in first-write order.
	resolved := make([]writeOp, 0, len(tx.writeIdx))
	seen := make(map[string]bool, len(tx.writeIdx))
	for _, op := range tx.writes {
		ck := txnKey(op.collection, op.key)
		if seen[ck] {
			continue
		}
		seen[ck] = true
		resolved = append(resolved, tx.writes[tx.writeIdx[ck]])
	}
	reads := tx.reads
	tx.mu.Unlock()

	var undos []func(context.Context)

	rollback := func() {
		for i := len(undos) - 1; i >= 0; i-- {
			undos[i](ctx)
		}
	}

	for _, op := range resolved {
		bucket := tx.store.Bucket(op.collection)

		prior, haveRec := reads[txnKey(op.collection, op.key)]
		if !haveRec {
			value, revision, err := bucket.Get(ctx, op.key)
			if err != nil && !errors.Is(err, ErrNotFound) {
				rollback()
				return err
			}
			prior = readRec{value: value, revision: revision, found: err == nil}
		}

		key := op.key
		switch op.kind {
		case opCreate:
			if _, err := bucket.Create(ctx, key, op.value); err != nil {
				rollback()
				return err
			}
			undos = append(undos, func(ctx context.Context) { _ = bucket.Delete(ctx, key) })

		case opPut:
			if prior.found {
				if _, err := bucket.Update(ctx, key, op.value, prior.revision); err != nil {
					rollback()
					return err
				}
				restore := cloneBytes(prior.value)
				undos = append(undos, func(ctx context.Context) { _, _ = bucket.Put(ctx, key, restore) })
			} else {
				if _, err := bucket.Create(ctx, key, op.value); err != nil {
					rollback()
					return err
				}
				undos = append(undos, func(ctx context.Context) { _ = bucket.Delete(ctx, key) })
			}

		case opDelete:
			if !prior.found {
				continue
			}
			if err := bucket.Delete(ctx, key); err != nil {
				rollback()
				return err
			}
			restore := cloneBytes(prior.value)
			undos = append(undos, func(ctx context.Context) { _, _ = bucket.Put(ctx, key, restore) })
		}
	}

	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Manager executes transactional units of work with bounded conflict
// retries. Callback bodies must be idempotent: a conflicting commit
// re-executes the whole callback against fresh state. External network
// calls inside a callback should be avoided or made idempotent.
type Manager struct {
	store    *Store
	attempts int
	logger   *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithAttempts sets the conflict retry budget.
func WithAttempts(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.attempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a transaction manager over the given store.
func NewManager(s *Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    s,
		attempts: DefaultTxnAttempts,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() *Store {
	return m.store
}

// Run executes fn against a fresh transaction handle and commits the
// buffered writes atomically on return. An error from fn discards all
// buffered writes. On a write-write conflict the whole callback is
// re-executed, up to the configured attempt budget.
func (m *Manager) Run(ctx context.Context, fn func(tx *Txn) error) error {
	var lastErr error
	for attempt := 0; attempt < m.attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 25 * time.Millisecond
			backoff += time.Duration(rand.Int64N(int64(10 * time.Millisecond)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			m.logger.Debug("retrying transaction after conflict", "attempt", attempt+1)
		}

		tx := newTxn(m.store)
		if err := fn(tx); err != nil {
			return err
		}

		lastErr = tx.commit(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrConflict) {
			return lastErr
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", m.attempts, lastErr)
}
