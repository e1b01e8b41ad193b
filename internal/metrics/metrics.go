// Package metrics records pipeline run metrics and writes them in the
// Prometheus text exposition format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "covidstats"

const (
	MetricRowsIngested   = "rows_ingested_total"
	MetricRowsMalformed  = "rows_malformed_total"
	MetricChunks         = "chunks_total"
	MetricCacheHits      = "cache_hits_total"
	MetricCacheMisses    = "cache_misses_total"
	MetricIngestDuration = "ingest_duration_seconds"
	MetricTableRows      = "table_rows"
)

// Cache artifact labels.
const (
	ArtifactTable = "table"
	ArtifactStats = "stats"
)

// Recorder holds one run's metrics on its own registry. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	RowsIngested   prometheus.Counter
	RowsMalformed  prometheus.Counter
	Chunks         prometheus.Counter
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	IngestDuration prometheus.Gauge
	TableRows      prometheus.Gauge
}

// New returns a Recorder with every metric registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		RowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricRowsIngested,
			Help:      "Rows kept from the raw source.",
		}),
		RowsMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricRowsMalformed,
			Help:      "Rows dropped for a wrong column count.",
		}),
		Chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricChunks,
			Help:      "Chunks normalized during ingestion.",
		}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricCacheHits,
			Help:      "Cache artifacts loaded instead of recomputed.",
		}, []string{"artifact"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricCacheMisses,
			Help:      "Cache artifacts missing, stale or unreadable.",
		}, []string{"artifact"}),
		IngestDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      MetricIngestDuration,
			Help:      "Wall time of the last ingestion.",
		}),
		TableRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      MetricTableRows,
			Help:      "Rows in the loaded table.",
		}),
	}
	r.registry.MustRegister(
		r.RowsIngested,
		r.RowsMalformed,
		r.Chunks,
		r.CacheHits,
		r.CacheMisses,
		r.IngestDuration,
		r.TableRows,
	)
	return r
}

// Ingested records one finished ingestion.
func (r *Recorder) Ingested(rows, malformed int64, chunks int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.RowsIngested.Add(float64(rows))
	r.RowsMalformed.Add(float64(malformed))
	r.Chunks.Add(float64(chunks))
	r.IngestDuration.Set(elapsed.Seconds())
}

// CacheHit counts a cache artifact that was used.
func (r *Recorder) CacheHit(artifact string) {
	if r == nil {
		return
	}
	r.CacheHits.WithLabelValues(artifact).Inc()
}

// CacheMiss counts a cache artifact that had to be rebuilt.
func (r *Recorder) CacheMiss(artifact string) {
	if r == nil {
		return
	}
	r.CacheMisses.WithLabelValues(artifact).Inc()
}

// Loaded records the size of the table a run ended with.
func (r *Recorder) Loaded(rows int) {
	if r == nil {
		return
	}
	r.TableRows.Set(float64(rows))
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes every metric to path in the text exposition format,
// replacing the file atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
