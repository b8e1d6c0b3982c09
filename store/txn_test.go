package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTxnReadYourWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	tx := newTxn(s)

	if err := tx.Put(ctx, CollectionPosts, "p1", []byte(`{"id":"p1"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	value, err := tx.Get(ctx, CollectionPosts, "p1")
	if err != nil {
		t.Fatalf("Get after Put failed: %v", err)
	}
	if string(value) != `{"id":"p1"}` {
		t.Errorf("Get returned %q, want buffered value", value)
	}

	// Nothing committed yet.
	if _, _, err := s.Bucket(CollectionPosts).Get(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("bucket Get before commit: got %v, want ErrNotFound", err)
	}

	if err := tx.Delete(ctx, CollectionPosts, "p1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := tx.Get(ctx, CollectionPosts, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: got %v, want ErrNotFound", err)
	}
}

func TestTxnCreateExistingKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if _, err := s.Bucket(CollectionPosts).Put(ctx, "p1", []byte("a")); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	tx := newTxn(s)
	if err := tx.Create(ctx, CollectionPosts, "p1", []byte("b")); !errors.Is(err, ErrConflict) {
		t.Errorf("Create on existing key: got %v, want ErrConflict", err)
	}
}

func TestTxnKeysMergesBufferedWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if _, err := s.Bucket(CollectionTriples).Put(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := s.Bucket(CollectionTriples).Put(ctx, "b", []byte("2")); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	tx := newTxn(s)
	if err := tx.Put(ctx, CollectionTriples, "c", []byte("3")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := tx.Delete(ctx, CollectionTriples, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	keys, err := tx.Keys(ctx, CollectionTriples)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	got := make(map[string]bool, len(keys))
	for _, k := range keys {
		got[k] = true
	}
	if len(got) != 2 || !got["b"] || !got["c"] {
		t.Errorf("Keys returned %v, want [b c]", keys)
	}
}

func TestManagerRunCommits(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemStore())

	err := m.Run(ctx, func(tx *Txn) error {
		return tx.Put(ctx, CollectionPosts, "p1", []byte("v1"))
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var value []byte
	err = m.Run(ctx, func(tx *Txn) error {
		var err error
		value, err = tx.Get(ctx, CollectionPosts, "p1")
		return err
	})
	if err != nil {
		t.Fatalf("read Run failed: %v", err)
	}
	if string(value) != "v1" {
		t.Errorf("committed value = %q, want v1", value)
	}
}

func TestManagerRunErrorDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	m := NewManager(s)

	wantErr := errors.New("boom")
	err := m.Run(ctx, func(tx *Txn) error {
		if err := tx.Put(ctx, CollectionPosts, "p1", []byte("v1")); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run returned %v, want callback error", err)
	}

	if _, _, err := s.Bucket(CollectionPosts).Get(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("write survived failed Run: %v", err)
	}
}

func TestManagerRunRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	m := NewManager(s)

	if _, err := s.Bucket(CollectionPosts).Put(ctx, "p1", []byte("v0")); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	attempts := 0
	err := m.Run(ctx, func(tx *Txn) error {
		attempts++
		if _, err := tx.Get(ctx, CollectionPosts, "p1"); err != nil {
			return err
		}
		if attempts == 1 {
			// A concurrent writer bumps the revision after our read.
			if _, err := s.Bucket(CollectionPosts).Put(ctx, "p1", []byte("interfering")); err != nil {
				return err
			}
		}
		return tx.Put(ctx, CollectionPosts, "p1", []byte(fmt.Sprintf("attempt-%d", attempts)))
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}

	value, _, err := s.Bucket(CollectionPosts).Get(ctx, "p1")
	if err != nil {
		t.Fatalf("final Get failed: %v", err)
	}
	if string(value) != "attempt-2" {
		t.Errorf("final value = %q, want attempt-2", value)
	}
}

func TestManagerRunExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	m := NewManager(s, WithAttempts(2))

	if _, err := s.Bucket(CollectionPosts).Put(ctx, "p1", []byte("v0")); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	attempts := 0
	err := m.Run(ctx, func(tx *Txn) error {
		attempts++
		if _, err := tx.Get(ctx, CollectionPosts, "p1"); err != nil {
			return err
		}
		// Every attempt loses the race.
		if _, err := s.Bucket(CollectionPosts).Put(ctx, "p1", []byte("interfering")); err != nil {
			return err
		}
		return tx.Put(ctx, CollectionPosts, "p1", []byte("mine"))
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Run returned %v, want ErrConflict", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestCommitRollbackOnConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if _, err := s.Bucket(CollectionPosts).Put(ctx, "conflicted", []byte("v0")); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	tx := newTxn(s)
	if _, err := tx.Get(ctx, CollectionPosts, "conflicted"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := tx.Put(ctx, CollectionPosts, "applied", []byte("new")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := tx.Put(ctx, CollectionPosts, "conflicted", []byte("mine")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Invalidate the read revision before commit.
	if _, err := s.Bucket(CollectionPosts).Put(ctx, "conflicted", []byte("interfering")); err != nil {
		t.Fatalf("interfere failed: %v", err)
	}

	if err := tx.commit(ctx); !errors.Is(err, ErrConflict) {
		t.Fatalf("commit returned %v, want ErrConflict", err)
	}

	// The first write was applied before the conflict and must be undone.
	if _, _, err := s.Bucket(CollectionPosts).Get(ctx, "applied"); !errors.Is(err, ErrNotFound) {
		t.Errorf("rolled-back key still present: %v", err)
	}
}
