package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// Collection identifies one logical collection used by the pipeline.
type Collection string

const (
	CollectionPosts         Collection = "posts"
	CollectionPlatformPosts Collection = "platform_posts"
	CollectionPlatformIndex Collection = "platform_post_index"
	CollectionTriples       Collection = "triples"
	CollectionLinks         Collection = "links"
	CollectionUsers         Collection = "users"
)

// Bucket names for each collection.
const (
	BucketPosts         = "SENSEGRAPH_POSTS"
	BucketPlatformPosts = "SENSEGRAPH_PLATFORM_POSTS"
	BucketPlatformIndex = "SENSEGRAPH_PLATFORM_POST_INDEX"
	BucketTriples       = "SENSEGRAPH_TRIPLES"
	BucketLinks         = "SENSEGRAPH_LINKS"
	BucketUsers         = "SENSEGRAPH_USERS"
)

var allCollections = map[Collection]string{
	CollectionPosts:         BucketPosts,
	CollectionPlatformPosts: BucketPlatformPosts,
	CollectionPlatformIndex: BucketPlatformIndex,
	CollectionTriples:       BucketTriples,
	CollectionLinks:         BucketLinks,
	CollectionUsers:         BucketUsers,
}

// Store holds one bucket per collection.
type Store struct {
	buckets map[Collection]Bucket
}

// NewStore creates a Store backed by NATS JetStream KV.
// It creates the necessary KV buckets if they don't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	buckets := make(map[Collection]Bucket, len(allCollections))
	for collection, name := range allCollections {
		kv, err := getOrCreateBucket(ctx, js, name)
		if err != nil {
			return nil, fmt.Errorf("create %s bucket: %w", collection, err)
		}
		buckets[collection] = NewNATSBucket(kv)
	}
	return &Store{buckets: buckets}, nil
}

// NewMemStore creates a Store backed by in-memory buckets. Used in
// embedded mode and in tests.
func NewMemStore() *Store {
	buckets := make(map[Collection]Bucket, len(allCollections))
	for collection := range allCollections {
		buckets[collection] = NewMemBucket()
	}
	return &Store{buckets: buckets}
}

// Bucket returns the bucket for a collection.
func (s *Store) Bucket(collection Collection) Bucket {
	return s.buckets[collection]
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Sensegraph %s storage", strings.ToLower(name)),
		History:     5, // Keep last 5 revisions
	})
}

// NewID generates a new unique entity id.
func NewID() string {
	return uuid.New().String()
}

// EncodeKey makes an arbitrary string (a URL, a platform post id) safe
// for use as a KV key. The encoding is reversible and deterministic.
func EncodeKey(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// DecodeKey reverses EncodeKey.
func DecodeKey(key string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("decode key %q: %w", key, err)
	}
	return string(data), nil
}
