package stats

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"covidstats/internal/casedata"
)

var (
	ErrUnknownColumn  = errors.New("unknown column")
	ErrUnknownMetric  = errors.New("unknown metric")
	ErrColumnRequired = errors.New("metric requires a column")
	ErrNotNumeric     = errors.New("column is not numeric")
)

// Metric is the per-group reduction applied by Group.
type Metric string

const (
	MetricSize    Metric = "size"    // rows per group
	MetricCount   Metric = "count"   // non-missing values of the column
	MetricSum     Metric = "sum"     // sum of the column (numeric only)
	MetricMean    Metric = "mean"    // mean of the column (numeric only)
	MetricNUnique Metric = "nunique" // distinct non-missing values of the column
)

// Metrics lists the supported metrics.
var Metrics = []Metric{MetricSize, MetricCount, MetricSum, MetricMean, MetricNUnique}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Metrics, m) {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// GroupRow is one group: its key values, in By order, and the metric value.
type GroupRow struct {
	Keys  []string
	Value float64
}

// Grouped is the result of Group.
type Grouped struct {
	By     []string
	Metric Metric
	Column string
	Rows   []GroupRow // sorted by Keys
}

// Group partitions t by the named columns and reduces each partition with
// metric. Records with a missing value in any grouping column are left out.
// Numeric metrics only apply to the age column, where the unknown-age
// sentinel counts as missing.
func Group(t *casedata.Table, by []string, metric Metric, column string) (*Grouped, error) {
	if len(by) == 0 {
		return nil, fmt.Errorf("group: %w: no grouping column", ErrUnknownColumn)
	}
	keys := make([]casedata.Field, len(by))
	for i, name := range by {
		f, err := resolve(t, name)
		if err != nil {
			return nil, fmt.Errorf("group: %w", err)
		}
		keys[i] = f
	}
	if !slices.Contains(Metrics, metric) {
		return nil, fmt.Errorf("group: %w: %q", ErrUnknownMetric, metric)
	}

	var valField casedata.Field = -1
	if metric != MetricSize {
		if column == "" {
			return nil, fmt.Errorf("group: %w: %s", ErrColumnRequired, metric)
		}
		f, err := resolve(t, column)
		if err != nil {
			return nil, fmt.Errorf("group: %w", err)
		}
		if (metric == MetricSum || metric == MetricMean) && f.Kind() != casedata.KindAge {
			return nil, fmt.Errorf("group: %w: %s", ErrNotNumeric, f.Name())
		}
		valField = f
	}

	type acc struct {
		keys     []string
		rows     int64
		n        int64
		sum      float64
		distinct map[string]struct{}
	}
	groups := make(map[string]*acc)

	for i := range t.Records {
		r := &t.Records[i]
		parts := make([]string, len(keys))
		missing := false
		for j, f := range keys {
			parts[j] = cellString(r, f)
			if parts[j] == "" {
				missing = true
				break
			}
		}
		if missing {
			continue
		}
		id := strings.Join(parts, "\x00")
		g, ok := groups[id]
		if !ok {
			g = &acc{keys: parts}
			if metric == MetricNUnique {
				g.distinct = make(map[string]struct{})
			}
			groups[id] = g
		}
		g.rows++
		if valField < 0 {
			continue
		}
		v := cellString(r, valField)
		if v == "" {
			continue
		}
		g.n++
		switch metric {
		case MetricSum, MetricMean:
			g.sum += float64(r.Age)
		case MetricNUnique:
			g.distinct[v] = struct{}{}
		}
	}

	out := &Grouped{By: canonicalNames(keys), Metric: metric, Rows: make([]GroupRow, 0, len(groups))}
	if valField >= 0 {
		out.Column = valField.Name()
	}
	for _, g := range groups {
		row := GroupRow{Keys: g.keys}
		switch metric {
		case MetricSize:
			row.Value = float64(g.rows)
		case MetricCount:
			row.Value = float64(g.n)
		case MetricSum:
			row.Value = g.sum
		case MetricMean:
			row.Value = math.NaN()
			if g.n > 0 {
				row.Value = g.sum / float64(g.n)
			}
		case MetricNUnique:
			row.Value = float64(len(g.distinct))
		}
		out.Rows = append(out.Rows, row)
	}
	slices.SortFunc(out.Rows, func(a, b GroupRow) int { return slices.Compare(a.Keys, b.Keys) })
	return out, nil
}

// CrossTable is a contingency table. Cells[i][j] belongs to Rows[i] and
// Cols[j].
type CrossTable struct {
	RowField string
	ColField string
	Rows     []string
	Cols     []string
	Cells    [][]float64
}

// CrossTab counts records by the pair (rowField, colField). With normalize
// each row is divided by its total so it sums to 1. Records missing either
// value are left out.
func CrossTab(t *casedata.Table, rowField, colField string, normalize bool) (*CrossTable, error) {
	rf, err := resolve(t, rowField)
	if err != nil {
		return nil, fmt.Errorf("crosstab: %w", err)
	}
	cf, err := resolve(t, colField)
	if err != nil {
		return nil, fmt.Errorf("crosstab: %w", err)
	}

	counts := make(map[[2]string]int64)
	rowSet := make(map[string]struct{})
	colSet := make(map[string]struct{})
	for i := range t.Records {
		r := &t.Records[i]
		rv, cv := cellString(r, rf), cellString(r, cf)
		if rv == "" || cv == "" {
			continue
		}
		counts[[2]string{rv, cv}]++
		rowSet[rv] = struct{}{}
		colSet[cv] = struct{}{}
	}

	ct := &CrossTable{
		RowField: rf.Name(),
		ColField: cf.Name(),
		Rows:     sortedKeys(rowSet),
		Cols:     sortedKeys(colSet),
	}
	ct.Cells = make([][]float64, len(ct.Rows))
	for i, rv := range ct.Rows {
		row := make([]float64, len(ct.Cols))
		var total float64
		for j, cv := range ct.Cols {
			row[j] = float64(counts[[2]string{rv, cv}])
			total += row[j]
		}
		if normalize && total > 0 {
			for j := range row {
				row[j] /= total
			}
		}
		ct.Cells[i] = row
	}
	return ct, nil
}

// Share is a value and its fraction of the non-missing values of a column.
type Share struct {
	Value    string
	Count    int64
	Fraction float64
}

// ColumnSummary describes the distribution of one categorical column.
type ColumnSummary struct {
	Column   string
	Distinct int
	Missing  int64
	Top      []Share
}

// CategoricalSummary returns, for each named column, its topN most frequent
// values as fractions of the non-missing values. With no names it covers
// every column marked categorical.
func CategoricalSummary(t *casedata.Table, columns []string, topN int) ([]ColumnSummary, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if len(columns) == 0 {
		columns = t.Schema.Categorical()
	}
	out := make([]ColumnSummary, 0, len(columns))
	for _, name := range columns {
		f, err := resolve(t, name)
		if err != nil {
			return nil, fmt.Errorf("summary: %w", err)
		}
		if f.Kind() != casedata.KindText {
			return nil, fmt.Errorf("summary: %s is not a text column", f.Name())
		}
		ranked := rankField(t, f, math.MaxInt)
		s := ColumnSummary{Column: f.Name(), Distinct: len(ranked)}
		var present int64
		for _, e := range ranked {
			present += e.Count
		}
		s.Missing = int64(t.Len()) - present
		for _, e := range ranked[:min(topN, len(ranked))] {
			s.Top = append(s.Top, Share{Value: e.Value, Count: e.Count, Fraction: float64(e.Count) / float64(present)})
		}
		out = append(out, s)
	}
	return out, nil
}

func resolve(t *casedata.Table, name string) (casedata.Field, error) {
	f, ok := casedata.Lookup(casedata.NormalizeHeader(strings.TrimSpace(name)))
	if !ok || !t.Schema.Has(f) {
		return -1, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return f, nil
}

// cellString renders any column value as a string, "" when missing.
func cellString(r *casedata.Record, f casedata.Field) string {
	switch f.Kind() {
	case casedata.KindDate:
		return r.Date(f).String()
	case casedata.KindAge:
		if r.Age == casedata.AgeUnknown {
			return ""
		}
		return strconv.Itoa(int(r.Age))
	default:
		return r.Text(f)
	}
}

func canonicalNames(fields []casedata.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name()
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
