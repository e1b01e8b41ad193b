// Package ingest reads the raw case CSV in bounded chunks and builds the
// normalized in-memory table.
package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"covidstats/internal/casedata"
)

// DefaultChunkSize is the number of raw rows normalized together.
const DefaultChunkSize = 100_000

// Options tune a single ingestion run.
type Options struct {
	ChunkSize            int
	CategoricalThreshold int
	Logger               *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.CategoricalThreshold <= 0 {
		o.CategoricalThreshold = casedata.DefaultCategoricalThreshold
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Stats describes what an ingestion run read.
type Stats struct {
	Rows           int64 // rows kept in the table
	Malformed      int64 // rows dropped for a wrong column count or broken quoting
	Chunks         int
	Bytes          int64
	Elapsed        time.Duration
	UnknownColumns []string
}

// File ingests the CSV at path. A missing or unreadable file is an error;
// malformed rows are not.
func File(ctx context.Context, path string, opts Options) (*casedata.Table, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, st, err := Reader(ctx, f, opts)
	if err != nil {
		return nil, st, fmt.Errorf("ingest %s: %w", path, err)
	}
	return t, st, nil
}

// Reader ingests CSV from r. Rows are read and normalized one chunk at a
// time; the resulting table keeps source order. Categorical typing is decided
// once over the concatenated table.
func Reader(ctx context.Context, r io.Reader, opts Options) (*casedata.Table, Stats, error) {
	opts = opts.withDefaults()
	start := time.Now()

	cr := &countingReader{r: r}
	br := bufio.NewReaderSize(cr, 256*1024)

	// Skip UTF-8 BOM if present
	if bom, err := br.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		br.Discard(3)
	}

	lines := &lineReader{br: br}
	header, err := lines.nextRecord()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, Stats{}, errors.New("read header: empty input")
		}
		return nil, Stats{}, fmt.Errorf("read header: %w", err)
	}

	norm := casedata.NewNormalizer(header, opts.CategoricalThreshold)
	st := Stats{UnknownColumns: norm.Unknown()}
	if len(st.UnknownColumns) > 0 {
		opts.Logger.Debug("ignoring unknown columns", "columns", st.UnknownColumns)
	}

	var records []casedata.Record
	chunk := make([][]string, 0, min(opts.ChunkSize, 4096))

	flush := func() {
		if len(chunk) == 0 {
			return
		}
		records = norm.NormalizeChunk(records, chunk)
		st.Chunks++
		st.Rows = int64(len(records))
		elapsed := time.Since(start).Seconds()
		opts.Logger.Info("progress",
			"chunk", st.Chunks,
			"rows", st.Rows,
			"malformed", st.Malformed,
			"rows_per_sec", fmt.Sprintf("%.0f", float64(st.Rows)/max(elapsed, 1e-9)),
		)
		clear(chunk)
		chunk = chunk[:0]
	}

	for {
		row, err := lines.nextRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				st.Malformed++
				continue
			}
			return nil, st, fmt.Errorf("read row %d: %w", lines.line, err)
		}
		if len(row) != norm.Width() {
			st.Malformed++
			continue
		}

		chunk = append(chunk, row)
		if len(chunk) >= opts.ChunkSize {
			flush()
			if err := ctx.Err(); err != nil {
				return nil, st, err
			}
		}
	}
	flush()

	t := casedata.NewTable(norm.Schema(), records)
	t.MarkCategorical(opts.CategoricalThreshold)

	st.Rows = int64(t.Len())
	st.Bytes = cr.n
	st.Elapsed = time.Since(start)
	opts.Logger.Info("ingested",
		"rows", st.Rows,
		"malformed", st.Malformed,
		"chunks", st.Chunks,
		"categorical", t.Schema.Categorical(),
		"elapsed", st.Elapsed.Round(time.Millisecond),
	)
	return t, st, nil
}

// lineReader yields one record per physical line. The case CSV never quotes
// a newline, so bounding a record to its line keeps a broken quote from
// swallowing the rows after it.
type lineReader struct {
	br   *bufio.Reader
	line int
}

// nextRecord returns the fields of the next non-empty line, io.EOF at the end
// of input, or a *csv.ParseError for a line whose quoting cannot be read.
func (l *lineReader) nextRecord() ([]string, error) {
	for {
		s, err := l.br.ReadString('\n')
		if err != nil && (err != io.EOF || s == "") {
			return nil, err
		}
		l.line++
		s = strings.TrimRight(s, "\r\n")
		if s == "" {
			if err == io.EOF {
				return nil, io.EOF
			}
			continue
		}
		return splitLine(s, l.line)
	}
}

// splitLine parses one CSV line. Lines without quotes are split directly.
// Stray quotes inside unquoted fields are kept as text; an unterminated or
// misplaced quote around a field is a parse error.
func splitLine(s string, line int) ([]string, error) {
	if !strings.Contains(s, `"`) {
		return strings.Split(s, ","), nil
	}
	row, err := parseQuoted(s, false)
	if errors.Is(err, csv.ErrBareQuote) {
		row, err = parseQuoted(s, true)
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			pe.StartLine, pe.Line = line, line
		}
		return nil, err
	}
	return row, nil
}

func parseQuoted(s string, lazy bool) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(s))
	reader.LazyQuotes = lazy
	reader.FieldsPerRecord = -1
	return reader.Read()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
