package links

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sensenets/sensegraph/metrics"
	"github.com/sensenets/sensegraph/store"
)

// Service is the reference-metadata cache. Lookups are served from the
// links collection; misses go through the resolver and are stored for
// every later post referencing the same URL.
type Service struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewService creates a links service with the given resolver.
func NewService(resolver Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{resolver: resolver, logger: logger}
}

// GetRefMeta returns the cached metadata for url, resolving and caching
// it on a miss.
func (s *Service) GetRefMeta(ctx context.Context, tx *store.Txn, url string) (*RefMeta, error) {
	key := store.EncodeKey(url)

	data, err := tx.Get(ctx, store.CollectionLinks, key)
	if err == nil {
		var meta RefMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("unmarshal ref meta: %w", err)
		}
		metrics.RefMetaCacheHits.Inc()
		return &meta, nil
	}

	metrics.RefMetaCacheMisses.Inc()

	meta, err := s.resolver.Resolve(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", url, err)
	}

	if err := s.SetRefMeta(ctx, tx, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// SetRefMeta unconditionally upserts metadata, used when the caller
// already holds trustworthy metadata and the external fetch can be
// skipped. Last writer wins.
func (s *Service) SetRefMeta(ctx context.Context, tx *store.Txn, meta *RefMeta) error {
	if meta.URL == "" {
		return fmt.Errorf("ref meta has no url")
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal ref meta: %w", err)
	}
	return tx.Put(ctx, store.CollectionLinks, store.EncodeKey(meta.URL), data)
}
