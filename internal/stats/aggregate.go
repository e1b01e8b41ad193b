package stats

import (
	"sort"
	"time"

	"covidstats/internal/casedata"
)

// DefaultTopN is the length of the department and municipality rankings.
const DefaultTopN = 10

// Options configure Aggregate.
type Options struct {
	TopN   int
	Now    func() time.Time // stamps LastUpdated; defaults to time.Now
	Source *Source
}

type categoryCount struct {
	field  casedata.Field
	counts *Counts
}

// categoryCounts lists the per-category sections in bundle order.
func (b *Bundle) categoryCounts() []categoryCount {
	return []categoryCount{
		{casedata.FieldState, &b.ByState},
		{casedata.FieldSex, &b.BySex},
		{casedata.FieldContagionType, &b.ByContagionType},
		{casedata.FieldLocation, &b.ByLocation},
		{casedata.FieldRecovered, &b.ByRecovered},
		{casedata.FieldRecoveryType, &b.ByRecoveryType},
		{casedata.FieldEthnicity, &b.ByEthnicity},
	}
}

// Aggregate computes the statistics bundle of t. Apart from LastUpdated the
// result depends only on the table contents. A section whose input column
// is missing from t's schema is left out.
func Aggregate(t *casedata.Table, opts Options) *Bundle {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	total := int64(t.Len())
	b := &Bundle{
		TotalRecords: &total,
		LastUpdated:  opts.Now().Format(LastUpdatedLayout),
		Source:       opts.Source,
	}

	for _, c := range b.categoryCounts() {
		if t.Schema.Has(c.field) {
			*c.counts = countField(t, c.field)
		}
	}

	if t.Schema.Has(casedata.FieldNotificationDate) {
		b.DateRange = dateRange(t.Records)
		b.Monthly, b.Weekly, b.Daily = periodCounts(t.Records)
		b.WeeklyTrend = weeklyTrend(b.Weekly)
	}

	if t.Schema.Has(casedata.FieldDepartment) {
		b.TopDepartments = rankField(t, casedata.FieldDepartment, opts.TopN)
	}
	if t.Schema.Has(casedata.FieldMunicipality) {
		b.TopMunicipalities = rankField(t, casedata.FieldMunicipality, opts.TopN)
	}

	if t.Schema.Has(casedata.FieldAge) {
		b.Age = ageStats(t.Records)
		b.AgeDistribution = ageDistribution(t.Records)
		if t.Schema.Has(casedata.FieldSex) {
			b.AgeBySex = ageBySex(t.Records)
		}
	}
	return b
}

// countField counts the non-missing values of a text field.
func countField(t *casedata.Table, f casedata.Field) Counts {
	c := make(Counts)
	for i := range t.Records {
		if v := t.Records[i].Text(f); v != "" {
			c[v]++
		}
	}
	return c
}

// rankField returns the n most frequent values of f, ties kept in the order
// the values first appear in the table.
func rankField(t *casedata.Table, f casedata.Field, n int) Ranking {
	idx := make(map[string]int)
	var r Ranking
	for i := range t.Records {
		v := t.Records[i].Text(f)
		if v == "" {
			continue
		}
		j, ok := idx[v]
		if !ok {
			j = len(r)
			idx[v] = j
			r = append(r, Ranked{Value: v})
		}
		r[j].Count++
	}
	sort.SliceStable(r, func(i, j int) bool { return r[i].Count > r[j].Count })
	if len(r) > n {
		r = r[:n]
	}
	return r
}

func dateRange(records []casedata.Record) *DateRange {
	lo, hi := casedata.NullDate, casedata.NullDate
	for i := range records {
		d := records[i].NotificationDate
		if !d.Valid() {
			continue
		}
		if !lo.Valid() || d < lo {
			lo = d
		}
		if !hi.Valid() || d > hi {
			hi = d
		}
	}
	if !lo.Valid() {
		return nil
	}
	return &DateRange{Min: lo.String(), Max: hi.String()}
}
