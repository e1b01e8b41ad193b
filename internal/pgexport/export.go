// Package pgexport bulk loads a normalized case table and its statistics
// bundle into PostgreSQL.
package pgexport

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"covidstats/internal/casedata"
	"covidstats/internal/stats"
)

//go:embed schema.sql
var Schema string

const (
	casesTable = "casos"
	statsTable = "estadisticas"
)

// DefaultBatchSize is the number of rows per COPY.
const DefaultBatchSize = 50_000

// Options tune an export.
type Options struct {
	BatchSize int
	Logger    *slog.Logger
}

// Result reports what an export wrote.
type Result struct {
	Rows        int64
	Batches     int
	Fingerprint string
	Elapsed     time.Duration
}

// Connect opens a pool for connStr and checks the server is reachable.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Export replaces the contents of the casos table with t and upserts b,
// keyed by its source fingerprint, into estadisticas. Everything runs in one
// transaction, so readers see either the previous load or the new one.
func Export(ctx context.Context, pool *pgxpool.Pool, t *casedata.Table, b *stats.Bundle, opts Options) (Result, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	start := time.Now()

	if _, err := pool.Exec(ctx, Schema); err != nil {
		return Result{}, fmt.Errorf("init schema: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE "+casesTable); err != nil {
		return Result{}, fmt.Errorf("truncate %s: %w", casesTable, err)
	}

	cols := columnNames()
	var res Result
	lastLog := time.Now()
	for lo := 0; lo < t.Len(); lo += opts.BatchSize {
		batch := t.Records[lo:min(lo+opts.BatchSize, t.Len())]
		n, err := tx.CopyFrom(ctx, pgx.Identifier{casesTable}, cols,
			pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
				return rowValues(&batch[i]), nil
			}))
		if err != nil {
			return res, fmt.Errorf("copy %s: %w", casesTable, err)
		}
		res.Rows += n
		res.Batches++

		if time.Since(lastLog) >= 5*time.Second {
			opts.Logger.Info("progress", "rows", res.Rows, "total", t.Len())
			lastLog = time.Now()
		}
	}

	if b != nil {
		res.Fingerprint, err = upsertBundle(ctx, tx, b)
		if err != nil {
			return res, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	res.Elapsed = time.Since(start)
	opts.Logger.Info("exported",
		"rows", res.Rows,
		"batches", res.Batches,
		"elapsed", res.Elapsed.Round(time.Millisecond),
	)
	return res, nil
}

func upsertBundle(ctx context.Context, tx pgx.Tx, b *stats.Bundle) (string, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode statistics: %w", err)
	}
	fingerprint := ""
	if b.Source != nil {
		fingerprint = b.Source.Fingerprint
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO `+statsTable+` (fingerprint, total, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (fingerprint) DO UPDATE
		SET total = EXCLUDED.total, payload = EXCLUDED.payload, updated_at = now()`,
		fingerprint, b.Total(), payload)
	if err != nil {
		return "", fmt.Errorf("upsert %s: %w", statsTable, err)
	}
	return fingerprint, nil
}

// columnNames lists the casos columns in schema order.
func columnNames() []string {
	out := make([]string, len(casedata.Columns))
	for i, c := range casedata.Columns {
		out[i] = c.Name
	}
	return out
}

func rowValues(r *casedata.Record) []any {
	vals := make([]any, len(casedata.Columns))
	for i, c := range casedata.Columns {
		switch c.Kind {
		case casedata.KindDate:
			vals[i] = dateToPg(r.Date(c.Field))
		case casedata.KindAge:
			vals[i] = ageToPg(r.Age)
		default:
			vals[i] = textToPg(r.Text(c.Field))
		}
	}
	return vals
}

// pgtype helpers

func dateToPg(d casedata.Date) pgtype.Date {
	if !d.Valid() {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: d.Time(), Valid: true}
}

func ageToPg(age int32) pgtype.Int4 {
	if age < 0 {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: age, Valid: true}
}

func textToPg(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: sanitizeUTF8(s), Valid: true}
}

// sanitizeUTF8 replaces invalid UTF-8 bytes with spaces and drops NULs,
// which TEXT columns reject.
func sanitizeUTF8(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, " "), "\x00", "")
}
