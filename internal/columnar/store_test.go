package columnar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidstats/internal/casedata"
)

func sampleTable(t *testing.T) *casedata.Table {
	t.Helper()
	header := []string{"id_de_caso", "fecha_de_notificacion", "nombre_departamento", "edad", "sexo", "estado", "fecha_de_muerte"}
	n := casedata.NewNormalizer(header, 0)
	rows := [][]string{
		{"1", "2021-01-01", "BOGOTA", "34", "F", "Leve", ""},
		{"2", "2021-01-02", "VALLE", "", "M", "Fallecido", "2021-01-20"},
		{"3", "", "", "52", "", "", ""},
	}
	tbl := casedata.NewTable(n.Schema(), n.NormalizeChunk(nil, rows))
	tbl.MarkCategorical(0)
	return tbl
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tbl := sampleTable(t)
	path := filepath.Join(t.TempDir(), "cache", "datos_covid.parquet")

	meta, err := Save(path, tbl, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(3), meta.Rows)

	got, gotMeta, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, tbl.Records, got.Records)
	assert.Equal(t, tbl.Schema.Columns(), got.Schema.Columns())
	assert.Equal(t, tbl.Schema.Categorical(), got.Schema.Categorical())
	assert.Equal(t, "abc123", gotMeta.SourceFingerprint)
	assert.Equal(t, int64(3), gotMeta.Rows)
	assert.False(t, gotMeta.SavedAt.IsZero())

	assert.Equal(t, casedata.AgeUnknown, got.Records[1].Age)
	assert.False(t, got.Records[2].NotificationDate.Valid())
	assert.Equal(t, "2021-01-20", got.Records[1].DeathDate.String())

	rm, err := ReadMeta(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rm.Rows)
	assert.Equal(t, meta.Columns, rm.Columns)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "datos_covid.parquet")
	_, err := Save(path, sampleTable(t), "")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "datos_covid.parquet", entries[0].Name())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), fi.Mode().Perm())
}

func TestSavedFileUsesDateColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datos_covid.parquet")
	_, err := Save(path, sampleTable(t), "")
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	stat, err := f.Stat()
	require.NoError(t, err)
	pf, err := parquet.OpenFile(f, stat.Size())
	require.NoError(t, err)

	col, ok := pf.Schema().Lookup("fecha_de_notificacion")
	require.True(t, ok)
	assert.NotNil(t, col.Node.Type().LogicalType().Date)
}

func TestLoadEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	empty := casedata.NewTable(casedata.SchemaOf("id_de_caso"), nil)
	_, err := Save(path, empty, "")
	require.NoError(t, err)

	got, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, []string{"id_de_caso"}, got.Schema.Columns())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := Load(filepath.Join(dir, "missing.parquet"))
	assert.ErrorIs(t, err, ErrNotFound)

	empty := filepath.Join(dir, "empty.parquet")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, _, err = Load(empty)
	assert.ErrorIs(t, err, ErrCorrupt)

	junk := filepath.Join(dir, "junk.parquet")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not parquet"), 0644))
	_, _, err = Load(junk)
	assert.ErrorIs(t, err, ErrCorrupt)
}
