package subset

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidstats/internal/casedata"
)

// datedTable returns one record per day from 2021-01-01 through 2021-01-10,
// plus one undated record.
func datedTable(t *testing.T) *casedata.Table {
	t.Helper()
	n := casedata.NewNormalizer([]string{"id_de_caso", "fecha_de_notificacion"}, 0)
	var rows [][]string
	for d := 1; d <= 10; d++ {
		rows = append(rows, []string{fmt.Sprint(d), fmt.Sprintf("2021-01-%02d", d)})
	}
	rows = append(rows, []string{"11", ""})
	return casedata.NewTable(n.Schema(), n.NormalizeChunk(nil, rows))
}

func bigTable(size int) *casedata.Table {
	recs := make([]casedata.Record, size)
	for i := range recs {
		recs[i].CaseID = fmt.Sprint(i)
		recs[i].Age = int32(i % 90)
	}
	return casedata.NewTable(casedata.SchemaOf("id_de_caso", "edad"), recs)
}

func ids(t *casedata.Table) []string {
	out := make([]string, t.Len())
	for i, r := range t.Records {
		out[i] = r.CaseID
	}
	return out
}

func TestSampleSize(t *testing.T) {
	tbl := bigTable(1000)
	for _, n := range []int{0, 1, 10, 999, 1000, 5000} {
		s := Sample(tbl, n, DefaultSeed)
		assert.Equal(t, min(n, tbl.Len()), s.Len(), "n=%d", n)
	}
}

func TestSampleDeterministicAndDistinct(t *testing.T) {
	tbl := bigTable(1000)
	a := Sample(tbl, 100, DefaultSeed)
	b := Sample(tbl, 100, DefaultSeed)
	assert.Equal(t, ids(a), ids(b))

	seen := make(map[string]bool)
	for _, id := range ids(a) {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}

	c := Sample(tbl, 100, 7)
	assert.NotEqual(t, ids(a), ids(c))
}

func TestSampleKeepsTableOrder(t *testing.T) {
	tbl := bigTable(500)
	pos := make(map[string]int)
	for i, id := range ids(tbl) {
		pos[id] = i
	}
	s := Sample(tbl, 50, DefaultSeed)
	for i := 1; i < s.Len(); i++ {
		assert.Less(t, pos[s.Records[i-1].CaseID], pos[s.Records[i].CaseID])
	}
}

func TestSampleSmallTableUnchanged(t *testing.T) {
	tbl := datedTable(t)
	assert.Same(t, tbl, Sample(tbl, DefaultSampleSize, DefaultSeed))
}

func TestFilterByDateSingleDay(t *testing.T) {
	tbl := datedTable(t)
	day := casedata.NewDate(2021, time.January, 5)
	got := FilterByDate(tbl, day, day, "fecha_de_notificacion")
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "5", got.Records[0].CaseID)
}

func TestFilterByDateRanges(t *testing.T) {
	tbl := datedTable(t)
	jan3 := casedata.MustParseDate("2021-01-03")
	jan8 := casedata.MustParseDate("2021-01-08")

	assert.Equal(t, []string{"3", "4", "5", "6", "7", "8"}, ids(FilterByDate(tbl, jan3, jan8, "fecha_de_notificacion")))
	assert.Equal(t, []string{"8", "9", "10"}, ids(FilterByDate(tbl, jan8, casedata.NullDate, "fecha_de_notificacion")))
	assert.Equal(t, []string{"1", "2", "3"}, ids(FilterByDate(tbl, casedata.NullDate, jan3, "Fecha de notificación")))
	assert.Equal(t, 0, FilterByDate(tbl, jan8, jan3, "fecha_de_notificacion").Len())
	assert.Same(t, tbl, FilterByDate(tbl, casedata.NullDate, casedata.NullDate, "fecha_de_notificacion"))
}

func TestFilterByDateMissingField(t *testing.T) {
	tbl := datedTable(t)
	day := casedata.MustParseDate("2021-01-05")
	assert.Same(t, tbl, FilterByDate(tbl, day, day, "fecha_de_muerte"))
	assert.Same(t, tbl, FilterByDate(tbl, day, day, "no_existe"))
	assert.Same(t, tbl, FilterByDate(tbl, day, day, "id_de_caso"))
}
