// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PostsIngested counts canonical posts created, by origin platform.
	PostsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensegraph_posts_ingested_total",
		Help: "Canonical posts created from platform posts.",
	}, []string{"platform"})

	// PostsDeduplicated counts platform posts skipped as already ingested.
	PostsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensegraph_posts_deduplicated_total",
		Help: "Platform posts skipped because their external key already exists.",
	}, []string{"platform"})

	// SemanticsProcessed counts semantics processing runs by outcome.
	SemanticsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensegraph_semantics_processed_total",
		Help: "Semantics processing runs.",
	}, []string{"outcome"})

	// TriplesStored counts RDF triples written.
	TriplesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensegraph_triples_stored_total",
		Help: "RDF triples written to the triple store.",
	})

	// RefMetaCacheHits counts reference-metadata cache hits.
	RefMetaCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensegraph_refmeta_cache_hits_total",
		Help: "Reference metadata served from the cache.",
	})

	// RefMetaCacheMisses counts reference-metadata cache misses.
	RefMetaCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensegraph_refmeta_cache_misses_total",
		Help: "Reference metadata resolved through the external fetcher.",
	})

	// NanopubsPublished counts published nanopublications.
	NanopubsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensegraph_nanopubs_published_total",
		Help: "Nanopublications published to the nanopub network.",
	})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
