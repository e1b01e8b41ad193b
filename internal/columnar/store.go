// Package columnar persists normalized case tables as Parquet files.
package columnar

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"covidstats/internal/casedata"
)

var (
	// ErrNotFound is returned by Load when the cache file does not exist.
	ErrNotFound = errors.New("columnar cache not found")
	// ErrCorrupt is returned by Load when the file exists but is not a
	// readable case table.
	ErrCorrupt = errors.New("columnar cache corrupt")
)

// Key/value metadata stored in the Parquet footer.
const (
	metaColumns     = "covidstats.columns"
	metaCategorical = "covidstats.categorical"
	metaFingerprint = "covidstats.source_fingerprint"
	metaSavedAt     = "covidstats.saved_at"
)

const batchSize = 8192

// Meta is the table description carried alongside the rows.
type Meta struct {
	Columns           []string // present canonical columns, schema order
	Categorical       []string
	SourceFingerprint string
	SavedAt           time.Time
	Rows              int64
}

// Save writes t to path. The file is built under a temporary name in the
// same directory and renamed into place, so a reader never sees a partial
// file. fingerprint identifies the source t was built from; the returned
// Meta describes what was written.
func Save(path string, t *casedata.Table, fingerprint string) (Meta, error) {
	meta := Meta{
		Columns:           t.Schema.Columns(),
		Categorical:       t.Schema.Categorical(),
		SourceFingerprint: fingerprint,
		SavedAt:           time.Now().UTC().Truncate(time.Second),
		Rows:              int64(t.Len()),
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Meta{}, fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return Meta{}, fmt.Errorf("create temp parquet file: %w", err)
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	writer := parquet.NewGenericWriter[caseRow](tmp,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.PageBufferSize(8*1024),
		parquet.WriteBufferSize(64*1024*1024),
		parquet.DataPageStatistics(true),
		parquet.CreatedBy("covidstats", "1.0", ""),
		parquet.KeyValueMetadata(metaColumns, strings.Join(meta.Columns, ",")),
		parquet.KeyValueMetadata(metaCategorical, strings.Join(meta.Categorical, ",")),
		parquet.KeyValueMetadata(metaFingerprint, fingerprint),
		parquet.KeyValueMetadata(metaSavedAt, meta.SavedAt.Format(time.RFC3339)),
	)

	buf := make([]caseRow, 0, batchSize)
	for i := range t.Records {
		buf = append(buf, toRow(&t.Records[i]))
		if len(buf) == batchSize {
			if _, err := writer.Write(buf); err != nil {
				return Meta{}, fmt.Errorf("write parquet rows: %w", err)
			}
			buf = buf[:0]
		}
	}
	if len(buf) > 0 {
		if _, err := writer.Write(buf); err != nil {
			return Meta{}, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return Meta{}, fmt.Errorf("close parquet writer: %w", err)
	}
	if err := tmp.Chmod(cacheFileMode); err != nil {
		return Meta{}, fmt.Errorf("chmod parquet file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return Meta{}, fmt.Errorf("sync parquet file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Meta{}, fmt.Errorf("close parquet file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return Meta{}, fmt.Errorf("publish parquet file: %w", err)
	}
	ok = true
	return meta, nil
}

// cacheFileMode lets other local readers open a published cache.
const cacheFileMode = 0o644

// Load reads a table written by Save. Files without covidstats metadata
// (written by another tool with the same column names) load with every
// column present.
func Load(path string) (*casedata.Table, Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Meta{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, Meta{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, Meta{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if stat.Size() == 0 {
		return nil, Meta{}, fmt.Errorf("%w: %s: empty file", ErrCorrupt, path)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, Meta{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	meta := readMeta(pf)

	reader := parquet.NewGenericReader[caseRow](pf)
	defer reader.Close()

	records := make([]casedata.Record, 0, reader.NumRows())
	buf := make([]caseRow, batchSize)
	for {
		clear(buf)
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			records = append(records, buf[i].record())
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Meta{}, fmt.Errorf("%w: %s: read rows: %v", ErrCorrupt, path, err)
		}
		if n == 0 {
			break
		}
	}
	meta.Rows = int64(len(records))

	schema := casedata.FullSchema()
	if len(meta.Columns) > 0 {
		schema = casedata.SchemaOf(meta.Columns...)
	}
	t := casedata.NewTable(schema.WithCategorical(meta.Categorical...), records)
	t.InternCategorical()
	return t, meta, nil
}

// ReadMeta returns only the footer metadata of the file at path.
func ReadMeta(path string) (Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Meta{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Meta{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return Meta{}, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	meta := readMeta(pf)
	meta.Rows = pf.NumRows()
	return meta, nil
}

func readMeta(pf *parquet.File) Meta {
	var m Meta
	if v, ok := pf.Lookup(metaColumns); ok && v != "" {
		m.Columns = strings.Split(v, ",")
	}
	if v, ok := pf.Lookup(metaCategorical); ok && v != "" {
		m.Categorical = strings.Split(v, ",")
	}
	m.SourceFingerprint, _ = pf.Lookup(metaFingerprint)
	if v, ok := pf.Lookup(metaSavedAt); ok {
		m.SavedAt, _ = time.Parse(time.RFC3339, v)
	}
	return m
}
