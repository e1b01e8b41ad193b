// Package pipeline orchestrates ingestion, caching and aggregation of the
// case dataset. It owns the two cache artifacts exclusively.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"covidstats/internal/casedata"
	"covidstats/internal/columnar"
	"covidstats/internal/ingest"
	"covidstats/internal/metrics"
	"covidstats/internal/statcache"
	"covidstats/internal/stats"
)

// Cache artifact file names inside the cache directory.
const (
	ParquetFile = "datos_covid.parquet"
	StatsFile   = "estadisticas.json"
)

// SourceEnsurer makes the raw source available at path, e.g. by
// downloading it. It reports whether the file is present afterwards.
type SourceEnsurer interface {
	EnsureSourcePresent(ctx context.Context, path string) (bool, error)
}

// Config wires a Pipeline.
type Config struct {
	SourcePath           string
	CacheDir             string
	ChunkSize            int
	CategoricalThreshold int
	TopN                 int

	Logger       *slog.Logger
	Metrics      *metrics.Recorder
	Now          func() time.Time
	EnsureSource SourceEnsurer // optional
}

// Pipeline turns the raw source into a Session, reusing the caches when
// they still describe the current source.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a pipeline for cfg.
func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{cfg: cfg, logger: cfg.Logger}
}

// ParquetPath is the columnar cache file.
func (p *Pipeline) ParquetPath() string { return filepath.Join(p.cfg.CacheDir, ParquetFile) }

// StatsPath is the statistics cache file.
func (p *Pipeline) StatsPath() string { return filepath.Join(p.cfg.CacheDir, StatsFile) }

// Session is the loaded state handed to presentation code.
type Session struct {
	RunID     string
	Table     *casedata.Table
	Bundle    *stats.Bundle
	Source    *stats.Source // nil when running from cache without the source
	LoadedAt  time.Time
	FromCache bool
}

// BundleIsValid reports whether a loaded bundle can be used. A bundle with
// no sections is not.
func BundleIsValid(b *stats.Bundle) bool {
	return b != nil && b.Len() > 0
}

// IngestOrLoad returns the table and statistics for the configured source.
//
// Unless force is set, each cache artifact is reused when it loads cleanly
// and either the source is absent or the artifact's fingerprint matches the
// source. A usable table with unusable statistics is re-aggregated without
// re-reading the source. Otherwise the source is ingested and both caches
// are rewritten.
func (p *Pipeline) IngestOrLoad(ctx context.Context, force bool) (*Session, error) {
	runID := uuid.NewString()
	log := p.logger.With("run_id", runID)

	src, err := p.identify()
	if err != nil {
		return nil, err
	}

	if !force {
		s, err := p.fromCache(log, src)
		if err != nil {
			return nil, err
		}
		if s != nil {
			s.RunID = runID
			p.cfg.Metrics.Loaded(s.Table.Len())
			return s, nil
		}
	} else {
		log.Info("forced refresh, ignoring caches")
	}

	if src == nil {
		if src, err = p.ensureSource(ctx, log); err != nil {
			return nil, err
		}
	}

	tbl, err := p.ingest(ctx, log, src)
	if err != nil {
		return nil, err
	}
	if _, err := columnar.Save(p.ParquetPath(), tbl, src.Fingerprint); err != nil {
		return nil, fmt.Errorf("save table cache: %w", err)
	}
	log.Info("table cache written", "path", p.ParquetPath())

	b, err := p.aggregate(log, tbl, src)
	if err != nil {
		return nil, err
	}
	p.cfg.Metrics.Loaded(tbl.Len())
	return &Session{
		RunID:    runID,
		Table:    tbl,
		Bundle:   b,
		Source:   src,
		LoadedAt: p.cfg.Now(),
	}, nil
}

// fromCache returns a session built from the caches, or nil when the table
// cache cannot be used.
func (p *Pipeline) fromCache(log *slog.Logger, src *stats.Source) (*Session, error) {
	// The footer alone tells whether the cache still matches the source.
	if src != nil {
		meta, err := columnar.ReadMeta(p.ParquetPath())
		switch {
		case err != nil:
			p.cfg.Metrics.CacheMiss(metrics.ArtifactTable)
			logCacheMiss(log, "table", p.ParquetPath(), err)
			return nil, nil
		case meta.SourceFingerprint != src.Fingerprint:
			p.cfg.Metrics.CacheMiss(metrics.ArtifactTable)
			log.Info("table cache is stale", "path", p.ParquetPath(),
				"cached", meta.SourceFingerprint, "source", src.Fingerprint)
			return nil, nil
		}
	}
	tbl, _, err := columnar.Load(p.ParquetPath())
	if err != nil {
		p.cfg.Metrics.CacheMiss(metrics.ArtifactTable)
		logCacheMiss(log, "table", p.ParquetPath(), err)
		return nil, nil
	}
	p.cfg.Metrics.CacheHit(metrics.ArtifactTable)
	log.Info("loaded table cache", "path", p.ParquetPath(), "rows", tbl.Len())

	s := &Session{Table: tbl, Source: src, LoadedAt: p.cfg.Now(), FromCache: true}

	b, err := statcache.Load(p.StatsPath())
	switch {
	case err != nil:
		logCacheMiss(log, "statistics", p.StatsPath(), err)
	case !BundleIsValid(b):
		log.Warn("statistics cache has no sections", "path", p.StatsPath())
	case src != nil && (b.Source == nil || b.Source.Fingerprint != src.Fingerprint):
		log.Info("statistics cache is stale", "path", p.StatsPath())
	default:
		p.cfg.Metrics.CacheHit(metrics.ArtifactStats)
		log.Info("loaded statistics cache", "path", p.StatsPath(), "sections", b.Len())
		s.Bundle = b
		return s, nil
	}
	p.cfg.Metrics.CacheMiss(metrics.ArtifactStats)

	if s.Bundle, err = p.aggregate(log, tbl, src); err != nil {
		return nil, err
	}
	s.FromCache = false
	return s, nil
}

func logCacheMiss(log *slog.Logger, what, path string, err error) {
	switch {
	case errors.Is(err, columnar.ErrNotFound), errors.Is(err, statcache.ErrNotFound):
		log.Info(what+" cache not found", "path", path)
	default:
		log.Warn(what+" cache unusable, rebuilding", "path", path, "err", err)
	}
}

func (p *Pipeline) aggregate(log *slog.Logger, tbl *casedata.Table, src *stats.Source) (*stats.Bundle, error) {
	start := time.Now()
	b := stats.Aggregate(tbl, stats.Options{TopN: p.cfg.TopN, Now: p.cfg.Now, Source: src})
	if err := statcache.Save(p.StatsPath(), b); err != nil {
		return nil, fmt.Errorf("save statistics cache: %w", err)
	}
	log.Info("statistics computed", "sections", b.Len(), "elapsed", time.Since(start).Round(time.Millisecond))
	return b, nil
}

func (p *Pipeline) ingest(ctx context.Context, log *slog.Logger, src *stats.Source) (*casedata.Table, error) {
	log.Info("ingesting source", "path", src.Path, "size_mb", fmt.Sprintf("%.1f", float64(src.SizeBytes)/1024/1024))
	tbl, st, err := ingest.File(ctx, src.Path, ingest.Options{
		ChunkSize:            p.cfg.ChunkSize,
		CategoricalThreshold: p.cfg.CategoricalThreshold,
		Logger:               log,
	})
	if err != nil {
		return nil, err
	}
	p.cfg.Metrics.Ingested(st.Rows, st.Malformed, st.Chunks, st.Elapsed)
	return tbl, nil
}

// identify describes the source, or returns nil when it is absent.
func (p *Pipeline) identify() (*stats.Source, error) {
	src, err := Identify(p.cfg.SourcePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	return src, nil
}

// ensureSource asks the configured collaborator for the source.
func (p *Pipeline) ensureSource(ctx context.Context, log *slog.Logger) (*stats.Source, error) {
	notFound := &SourceNotFoundError{Path: p.cfg.SourcePath}
	if p.cfg.EnsureSource == nil {
		return nil, notFound
	}
	log.Info("source missing, asking collaborator", "path", p.cfg.SourcePath)
	ok, err := p.cfg.EnsureSource.EnsureSourcePresent(ctx, p.cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("ensure source %s: %w", p.cfg.SourcePath, err)
	}
	if !ok {
		return nil, notFound
	}
	src, err := p.identify()
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, notFound
	}
	return src, nil
}

// ConvertReport summarizes a CSV to Parquet conversion.
type ConvertReport struct {
	Source      string
	Output      string
	Rows        int64
	Malformed   int64
	Chunks      int
	InputBytes  int64
	OutputBytes int64
	Elapsed     time.Duration
}

// Ratio is the input size divided by the output size.
func (r ConvertReport) Ratio() float64 {
	if r.OutputBytes == 0 {
		return 0
	}
	return float64(r.InputBytes) / float64(r.OutputBytes)
}

// Convert ingests the source and writes only the columnar cache.
func (p *Pipeline) Convert(ctx context.Context) (ConvertReport, error) {
	log := p.logger.With("run_id", uuid.NewString())
	src, err := p.identify()
	if err != nil {
		return ConvertReport{}, err
	}
	if src == nil {
		if src, err = p.ensureSource(ctx, log); err != nil {
			return ConvertReport{}, err
		}
	}

	start := time.Now()
	tbl, st, err := ingest.File(ctx, src.Path, ingest.Options{
		ChunkSize:            p.cfg.ChunkSize,
		CategoricalThreshold: p.cfg.CategoricalThreshold,
		Logger:               log,
	})
	if err != nil {
		return ConvertReport{}, err
	}
	p.cfg.Metrics.Ingested(st.Rows, st.Malformed, st.Chunks, st.Elapsed)

	out := p.ParquetPath()
	if _, err := columnar.Save(out, tbl, src.Fingerprint); err != nil {
		return ConvertReport{}, fmt.Errorf("save table cache: %w", err)
	}
	rep := ConvertReport{
		Source:     src.Path,
		Output:     out,
		Rows:       st.Rows,
		Malformed:  st.Malformed,
		Chunks:     st.Chunks,
		InputBytes: src.SizeBytes,
		Elapsed:    time.Since(start),
	}
	if fi, err := os.Stat(out); err == nil {
		rep.OutputBytes = fi.Size()
	}
	log.Info("converted", "rows", rep.Rows, "output", out, "ratio", fmt.Sprintf("%.1fx", rep.Ratio()))
	return rep, nil
}

// ClearCache deletes both cache artifacts and returns the ones that existed.
func (p *Pipeline) ClearCache() ([]string, error) {
	var removed []string
	for _, path := range []string{p.ParquetPath(), p.StatsPath()} {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = append(removed, path)
		case errors.Is(err, os.ErrNotExist):
		default:
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
	}
	p.logger.Info("cache cleared", "removed", len(removed))
	return removed, nil
}
