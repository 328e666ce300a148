// Package metrics defines the Prometheus collectors exposed at /metrics:
// cache hit/miss/eviction counters, ingestion counters, and a search
// request latency histogram. This is ambient observability, not part of
// the serving/ingestion non-goals.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is a named bundle of collectors registered against one
// prometheus.Registerer, so handlers and the ingestion pipeline can each
// be handed just the counters they need.
type Registry struct {
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter

	FilesIngested   prometheus.Counter
	FilesSkipped    prometheus.Counter
	PagesPersisted  prometheus.Counter
	PagesRejected   prometheus.Counter
	IngestFailures  prometheus.Counter

	SearchRequests prometheus.Counter
	SearchDuration prometheus.Histogram
}

// New creates and registers a Registry's collectors against reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexicon_cache_hits_total", Help: "Response cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexicon_cache_misses_total", Help: "Response cache misses.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexicon_cache_evictions_total", Help: "Response cache LRU evictions.",
		}),
		FilesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexicon_files_ingested_total", Help: "PDF files successfully ingested.",
		}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexicon_files_skipped_total", Help: "PDF files skipped (below min_pages or zero pages).",
		}),
		PagesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexicon_pages_persisted_total", Help: "Pages of sanitised text persisted.",
		}),
		PagesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexicon_pages_rejected_total", Help: "Pages dropped by the sanitiser or left empty.",
		}),
		IngestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexicon_ingest_failures_total", Help: "Per-file ingestion transactions rolled back.",
		}),
		SearchRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lexicon_search_requests_total", Help: "Search requests served.",
		}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "lexicon_search_duration_seconds", Help: "Search request latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		r.CacheHits, r.CacheMisses, r.CacheEvictions,
		r.FilesIngested, r.FilesSkipped, r.PagesPersisted, r.PagesRejected, r.IngestFailures,
		r.SearchRequests, r.SearchDuration,
	)
	return r
}
