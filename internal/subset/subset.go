// Package subset derives bounded samples and date-filtered views of a case
// table for downstream consumers.
package subset

import (
	"math/rand/v2"
	"slices"

	"covidstats/internal/casedata"
)

// Default sampling parameters.
const (
	DefaultSampleSize = 10_000
	DefaultSeed       = 42
)

// Sample returns min(n, t.Len()) rows of t chosen pseudo-randomly from seed.
// The same seed always selects the same rows, and the rows keep their table
// order. When t already has at most n rows it is returned as is.
func Sample(t *casedata.Table, n int, seed uint64) *casedata.Table {
	total := t.Len()
	if total <= n {
		return t
	}
	if n <= 0 {
		return t.Derive([]casedata.Record{})
	}

	// Floyd's algorithm: n distinct indices without materializing a
	// permutation of the whole table.
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	chosen := make(map[int]struct{}, n)
	idx := make([]int, 0, n)
	for j := total - n; j < total; j++ {
		k := rng.IntN(j + 1)
		if _, dup := chosen[k]; dup {
			k = j
		}
		chosen[k] = struct{}{}
		idx = append(idx, k)
	}
	slices.Sort(idx)

	out := make([]casedata.Record, len(idx))
	for i, k := range idx {
		out[i] = t.Records[k]
	}
	return t.Derive(out)
}

// FilterByDate keeps the rows whose field date d satisfies start <= d <=
// end. Either bound may be casedata.NullDate to leave that side open; rows
// with no date are dropped whenever a bound is set. A field that is not a
// date column present in t returns t unchanged.
func FilterByDate(t *casedata.Table, start, end casedata.Date, field string) *casedata.Table {
	f, ok := casedata.Lookup(casedata.NormalizeHeader(field))
	if !ok || f.Kind() != casedata.KindDate || !t.Schema.Has(f) {
		return t
	}
	if !start.Valid() && !end.Valid() {
		return t
	}
	// The end bound is exclusive at the following day.
	stop := end.AddDays(1)

	out := make([]casedata.Record, 0)
	for i := range t.Records {
		d := t.Records[i].Date(f)
		if !d.Valid() {
			continue
		}
		if start.Valid() && d < start {
			continue
		}
		if stop.Valid() && d >= stop {
			continue
		}
		out = append(out, t.Records[i])
	}
	return t.Derive(out)
}
