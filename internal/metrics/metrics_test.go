package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()
	r.Ingested(100, 3, 2, 1500*time.Millisecond)
	r.CacheHit(ArtifactTable)
	r.CacheMiss(ArtifactStats)
	r.CacheMiss(ArtifactStats)
	r.Loaded(100)

	assert.Equal(t, 100.0, testutil.ToFloat64(r.RowsIngested))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.RowsMalformed))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Chunks))
	assert.Equal(t, 1.5, testutil.ToFloat64(r.IngestDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheHits.WithLabelValues(ArtifactTable)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheMisses.WithLabelValues(ArtifactStats)))
	assert.Equal(t, 100.0, testutil.ToFloat64(r.TableRows))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.Ingested(1, 1, 1, time.Second)
	r.CacheHit(ArtifactTable)
	r.CacheMiss(ArtifactTable)
	r.Loaded(1)
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Ingested(42, 0, 1, time.Second)
	path := filepath.Join(t.TempDir(), "covidstats.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "covidstats_rows_ingested_total 42")
}
