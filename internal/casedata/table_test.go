package casedata

import (
	"fmt"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizerMapsHeaders(t *testing.T) {
	header := []string{"\ufeffID de caso", "Fecha de notificación", "Edad", "Sexo", "Nombre departamento", "Columna extra", "departamento"}
	n := NewNormalizer(header, 0)

	assert.Equal(t, len(header), n.Width())
	assert.Equal(t, []string{"columna_extra"}, n.Unknown())
	assert.Equal(t, []string{"id_de_caso", "fecha_de_notificacion", "nombre_departamento", "edad", "sexo"}, n.Schema().Columns())

	rec := n.NormalizeRow([]string{" 7 ", "2020-03-06 00:00:00", "34", "f", "BOGOTA", "ignored", "DUPLICATE"})
	assert.Equal(t, "7", rec.CaseID)
	assert.Equal(t, "2020-03-06", rec.NotificationDate.String())
	assert.Equal(t, int32(34), rec.Age)
	assert.Equal(t, SexFemale, rec.Sex)
	assert.Equal(t, "BOGOTA", rec.Department)
	assert.False(t, rec.ReportDate.Valid())
	assert.Equal(t, "", rec.Municipality)
}

func TestNormalizerDegradesBadCells(t *testing.T) {
	n := NewNormalizer([]string{"edad", "fecha_de_notificacion", "estado"}, 0)
	recs := n.NormalizeChunk(nil, [][]string{
		{"abc", "not a date", "nan"},
		{"", "", ""},
	})
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, AgeUnknown, r.Age)
		assert.False(t, r.HasValidAge())
		assert.Equal(t, NullDate, r.NotificationDate)
		assert.Equal(t, "", r.State)
	}
}

func TestMarkCategorical(t *testing.T) {
	n := NewNormalizer([]string{"id_de_caso", "sexo", "estado"}, 10)
	var rows [][]string
	for i := 0; i < 50; i++ {
		state := "Leve"
		if i%5 == 0 {
			state = "Fallecido"
		}
		rows = append(rows, []string{fmt.Sprint(i), "M", state})
	}
	tbl := NewTable(n.Schema(), n.NormalizeChunk(nil, rows))
	tbl.MarkCategorical(10)

	assert.Equal(t, []string{"sexo", "estado"}, tbl.Schema.Categorical())
	assert.False(t, tbl.Schema.IsCategorical(FieldCaseID))
	assert.Equal(t, []string{"Fallecido", "Leve"}, tbl.Distinct(FieldState))

	a, b := tbl.Records[1].State, tbl.Records[2].State
	assert.Same(t, unsafe.StringData(a), unsafe.StringData(b))
}

func TestSchemaHelpers(t *testing.T) {
	s := SchemaOf("edad", "sexo", "departamento_nom", "nope")
	assert.True(t, s.Has(FieldAge))
	assert.True(t, s.HasColumn("nombre_departamento"))
	assert.False(t, s.Has(FieldState))
	assert.False(t, s.Has(Field(-1)))

	s = s.WithCategorical("sexo", "edad", "estado")
	assert.Equal(t, []string{"sexo"}, s.Categorical())

	full := FullSchema()
	assert.Len(t, full.Columns(), len(Columns))

	var nilTable *Table
	assert.Equal(t, 0, nilTable.Len())
}
