package casedata

import "sort"

// DefaultCategoricalThreshold is the distinct-value count below which a text
// column is marked categorical.
const DefaultCategoricalThreshold = 100

// Schema records which canonical columns a table carries and which of its
// text columns are categorical.
type Schema struct {
	present     [numFields]bool
	categorical [numFields]bool
}

// FullSchema returns a schema with every column present and nothing marked
// categorical.
func FullSchema() Schema {
	var s Schema
	for i := range s.present {
		s.present[i] = true
	}
	return s
}

// SchemaOf returns a schema carrying the named columns. Unknown names are
// ignored.
func SchemaOf(names ...string) Schema {
	var s Schema
	for _, n := range names {
		if f, ok := Lookup(n); ok {
			s.present[f] = true
		}
	}
	return s
}

// Has reports whether field f is part of the schema.
func (s Schema) Has(f Field) bool {
	return f >= 0 && f < numFields && s.present[f]
}

// HasColumn reports whether the named column (canonical or alias) is present.
func (s Schema) HasColumn(name string) bool {
	f, ok := Lookup(name)
	return ok && s.present[f]
}

// IsCategorical reports whether field f was marked categorical.
func (s Schema) IsCategorical(f Field) bool {
	return s.Has(f) && s.categorical[f]
}

// Columns returns the canonical names of the present columns in schema order.
func (s Schema) Columns() []string {
	var out []string
	for _, c := range Columns {
		if s.present[c.Field] {
			out = append(out, c.Name)
		}
	}
	return out
}

// Categorical returns the canonical names of the categorical columns.
func (s Schema) Categorical() []string {
	var out []string
	for _, c := range Columns {
		if s.IsCategorical(c.Field) {
			out = append(out, c.Name)
		}
	}
	return out
}

// WithCategorical returns a copy of s with the named columns marked
// categorical. Names that are absent or not text columns are ignored.
func (s Schema) WithCategorical(names ...string) Schema {
	for _, n := range names {
		if f, ok := Lookup(n); ok && s.present[f] && f.Kind() == KindText {
			s.categorical[f] = true
		}
	}
	return s
}

func (s Schema) withField(f Field) Schema {
	s.present[f] = true
	return s
}

// Table is an ordered, immutable collection of records sharing one schema.
// Derived views (samples, filters) share the schema and copy the rows they
// keep.
type Table struct {
	Schema  Schema
	Records []Record
}

// NewTable wraps records with schema.
func NewTable(schema Schema, records []Record) *Table {
	return &Table{Schema: schema, Records: records}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Derive returns a table with the same schema over a different row set.
func (t *Table) Derive(records []Record) *Table {
	return &Table{Schema: t.Schema, Records: records}
}

// MarkCategorical decides, over the fully concatenated table, which text
// columns hold fewer than threshold distinct non-missing values, marks them
// categorical and interns their values so equal strings share storage.
// It runs once after ingestion so every chunk gets the same typing.
func (t *Table) MarkCategorical(threshold int) {
	if threshold <= 0 {
		threshold = DefaultCategoricalThreshold
	}
	for _, c := range Columns {
		if c.Kind != KindText || !t.Schema.present[c.Field] {
			continue
		}
		slot := textFields[c.Field]
		seen := make(map[string]struct{}, threshold)
		for i := range t.Records {
			v := *slot(&t.Records[i])
			if v == "" {
				continue
			}
			seen[v] = struct{}{}
			if len(seen) >= threshold {
				break
			}
		}
		t.Schema.categorical[c.Field] = len(seen) < threshold
	}
	t.InternCategorical()
}

// InternCategorical makes equal values of every categorical column share one
// string. Tables reloaded from disk carry the categorical marks but not the
// sharing.
func (t *Table) InternCategorical() {
	for _, c := range Columns {
		if !t.Schema.IsCategorical(c.Field) {
			continue
		}
		slot := textFields[c.Field]
		pool := make(map[string]string)
		for i := range t.Records {
			p := slot(&t.Records[i])
			if *p == "" {
				continue
			}
			if v, ok := pool[*p]; ok {
				*p = v
			} else {
				pool[*p] = *p
			}
		}
	}
}

// Distinct returns the sorted distinct non-missing values of a text field.
func (t *Table) Distinct(f Field) []string {
	slot, ok := textFields[f]
	if !ok || !t.Schema.Has(f) {
		return nil
	}
	seen := make(map[string]struct{})
	for i := range t.Records {
		if v := *slot(&t.Records[i]); v != "" {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
