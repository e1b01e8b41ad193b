package casedata

import "strings"

// Normalizer turns raw CSV rows into Records. It is built once from the
// header row and then applied to every chunk, so the header-to-field
// mapping is identical across chunks.
type Normalizer struct {
	fields  []Field // per source column; -1 when the column is ignored
	schema  Schema
	unknown []string
	pool    [numFields]*interner
}

// NewNormalizer maps the raw header row onto canonical fields. Headers that
// normalize to neither a canonical name nor an alias are ignored. When two
// headers resolve to the same field the first one wins.
//
// internLimit bounds the per-column string pool used while reading: a column
// stops being pooled once it has shown that many distinct values.
func NewNormalizer(header []string, internLimit int) *Normalizer {
	if internLimit <= 0 {
		internLimit = DefaultCategoricalThreshold
	}
	n := &Normalizer{fields: make([]Field, len(header))}
	for i, h := range header {
		name := NormalizeHeader(h)
		f, ok := Lookup(name)
		if !ok || n.schema.present[f] {
			n.fields[i] = -1
			if !ok {
				n.unknown = append(n.unknown, name)
			}
			continue
		}
		n.fields[i] = f
		n.schema = n.schema.withField(f)
		if f.Kind() == KindText {
			n.pool[f] = newInterner(internLimit)
		}
	}
	return n
}

// Width is the number of fields a well-formed row must have.
func (n *Normalizer) Width() int { return len(n.fields) }

// Schema returns the columns recognised in the header.
func (n *Normalizer) Schema() Schema { return n.schema }

// Unknown returns the normalized headers that were ignored.
func (n *Normalizer) Unknown() []string { return n.unknown }

// NormalizeRow coerces one well-formed raw row. It never fails: bad cells
// degrade to their missing value.
func (n *Normalizer) NormalizeRow(row []string) Record {
	rec := emptyRecord()
	for i, f := range n.fields {
		if f < 0 || i >= len(row) {
			continue
		}
		cell := row[i]
		switch f.Kind() {
		case KindDate:
			*dateFields[f](&rec) = ParseDate(cell)
		case KindAge:
			rec.Age = ParseAge(cell)
		default:
			v := CleanText(cell)
			if f == FieldSex {
				v = NormalizeSex(v)
			}
			*textFields[f](&rec) = n.pool[f].intern(v)
		}
	}
	return rec
}

// NormalizeChunk appends the normalized form of rows to dst.
func (n *Normalizer) NormalizeChunk(dst []Record, rows [][]string) []Record {
	for _, row := range rows {
		dst = append(dst, n.NormalizeRow(row))
	}
	return dst
}

// interner deduplicates repeated strings of a low-cardinality column.
// It stops accepting new values at limit so high-cardinality columns
// (case ids) do not grow an unbounded map. Returned strings never alias the
// csv.Reader line buffer, so a kept cell does not pin its whole source line.
type interner struct {
	limit int
	m     map[string]string
}

func newInterner(limit int) *interner {
	return &interner{limit: limit, m: make(map[string]string)}
}

func (p *interner) intern(s string) string {
	if s == "" {
		return s
	}
	if p == nil {
		return strings.Clone(s)
	}
	if v, ok := p.m[s]; ok {
		return v
	}
	s = strings.Clone(s)
	if len(p.m) < p.limit {
		p.m[s] = s
	}
	return s
}
