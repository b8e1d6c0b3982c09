package semantics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sensenets/sensegraph/store"
)

// Repo stores the structured triples derived from a post's semantics.
// Triples are keyed as <postID>.<tripleID> so all triples of a post are
// reachable by prefix scan.
type Repo struct{}

// NewRepo creates a triples repository.
func NewRepo() *Repo {
	return &Repo{}
}

func tripleKey(postID, tripleID string) string {
	return postID + "." + tripleID
}

// Create stores triple under a fresh id and returns it.
func (r *Repo) Create(ctx context.Context, tx *store.Txn, triple Triple) (Triple, error) {
	if triple.ID == "" {
		triple.ID = store.NewID()
	}
	data, err := json.Marshal(triple)
	if err != nil {
		return Triple{}, fmt.Errorf("marshal triple: %w", err)
	}
	if err := tx.Create(ctx, store.CollectionTriples, tripleKey(triple.PostID, triple.ID), data); err != nil {
		return Triple{}, err
	}
	return triple, nil
}

// GetOfPost returns all stored triples of a post, ordered by id for
// deterministic output.
func (r *Repo) GetOfPost(ctx context.Context, tx *store.Txn, postID string) ([]Triple, error) {
	keys, err := r.keysOfPost(ctx, tx, postID)
	if err != nil {
		return nil, err
	}

	triples := make([]Triple, 0, len(keys))
	for _, key := range keys {
		data, err := tx.Get(ctx, store.CollectionTriples, key)
		if err != nil {
			return nil, fmt.Errorf("get triple %s: %w", key, err)
		}
		var triple Triple
		if err := json.Unmarshal(data, &triple); err != nil {
			return nil, fmt.Errorf("unmarshal triple %s: %w", key, err)
		}
		triples = append(triples, triple)
	}

	sort.Slice(triples, func(i, j int) bool { return triples[i].ID < triples[j].ID })
	return triples, nil
}

// DeleteOfPost removes every triple of a post and returns how many were
// deleted.
func (r *Repo) DeleteOfPost(ctx context.Context, tx *store.Txn, postID string) (int, error) {
	keys, err := r.keysOfPost(ctx, tx, postID)
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		if err := tx.Delete(ctx, store.CollectionTriples, key); err != nil {
			return 0, fmt.Errorf("delete triple %s: %w", key, err)
		}
	}
	return len(keys), nil
}

func (r *Repo) keysOfPost(ctx context.Context, tx *store.Txn, postID string) ([]string, error) {
	all, err := tx.Keys(ctx, store.CollectionTriples)
	if err != nil {
		return nil, fmt.Errorf("list triples: %w", err)
	}
	prefix := postID + "."
	keys := make([]string, 0)
	for _, key := range all {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
