package statcache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidstats/internal/stats"
)

func sampleBundle() *stats.Bundle {
	total := int64(3)
	return &stats.Bundle{
		TotalRecords:   &total,
		LastUpdated:    "2021-03-01 12:00:00",
		DateRange:      &stats.DateRange{Min: "2021-01-01", Max: "2021-01-03"},
		BySex:          stats.Counts{"M": 1, "F": 2},
		Daily:          stats.Counts{"2021-01-01": 1, "2021-01-02": 1, "2021-01-03": 1},
		TopDepartments: stats.Ranking{{Value: "VALLE", Count: 2}, {Value: "BOGOTA", Count: 1}},
		Age:            &stats.AgeStats{Mean: 30, Median: 30, Min: 20, Max: 40, StdDev: 8.16, Count: 3},
		AgeBySex:       map[string]stats.Counts{"F": {"20-29": 1, "30-39": 0}},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datos_procesados", "estadisticas.json")
	want := sampleBundle()
	require.NoError(t, Save(path, want))
	assert.True(t, Exists(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, want.Len(), got.Len())
}

func TestSaveWritesReadableJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estadisticas.json")
	b := sampleBundle()
	b.TopDepartments = stats.Ranking{{Value: "NARIÑO", Count: 4}}
	require.NoError(t, Save(path, b))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(data)
	assert.True(t, strings.HasPrefix(s, "{\n  \"total_registros\": 3,"))
	assert.Contains(t, s, `"NARIÑO": 4`)
	assert.Contains(t, s, `"top_departamentos"`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), fi.Mode().Perm())
}

func TestLoadConditions(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, Exists(filepath.Join(dir, "missing.json")))

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0644))
	_, err = Load(empty)
	assert.ErrorIs(t, err, ErrEmpty)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"total_registros": `), 0644))
	_, err = Load(broken)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, broken, pe.Path)
	assert.NotErrorIs(t, err, ErrEmpty)

	wrongShape := filepath.Join(dir, "shape.json")
	require.NoError(t, os.WriteFile(wrongShape, []byte(`{"conteo_por_sexo": [1, 2]}`), 0644))
	_, err = Load(wrongShape)
	assert.True(t, errors.As(err, &pe))

	blank := filepath.Join(dir, "blank.json")
	require.NoError(t, os.WriteFile(blank, []byte(`{}`), 0644))
	b, err := Load(blank)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
}
