package ingest

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidstats/internal/casedata"
	"covidstats/internal/testutil"
)

const casesHeader = "fecha reporte web,ID de caso,Fecha de notificación,Código DIVIPOLA departamento,Nombre departamento,Código DIVIPOLA municipio,Nombre municipio,Edad,Unidad de medida de edad,Sexo,Tipo de contagio,Ubicación del caso,Estado,Recuperado,Fecha de recuperación,Tipo de recuperación,Pertenencia étnica\n"

// writeCasesCSV writes a case CSV fixture with the official header.
func writeCasesCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "casos.csv")
	if err := os.WriteFile(path, []byte(casesHeader+body), 0644); err != nil {
		t.Fatalf("write cases CSV: %v", err)
	}
	return path
}

func TestFileKeepsWellFormedRows(t *testing.T) {
	body := `2020-03-06 00:00:00,1,2020-03-02 00:00:00,11,BOGOTA,11001,BOGOTA,19,1,F,Importado,Casa,Leve,Recuperado,2020-03-13 00:00:00,PCR,Otro
2020-03-09 00:00:00,2,2020-03-06 00:00:00,76,VALLE,76111,BUGA,34,1,M,Importado,Casa,Leve,Recuperado,2020-03-19 00:00:00,PCR,Otro
this,row,is,short
2020-03-09 00:00:00,3,2020-03-07 00:00:00,5,ANTIOQUIA,5001,MEDELLIN,50,1,F,Importado,Casa,Leve,Recuperado,2020-03-15 00:00:00,PCR,Otro,extra
2020-03-11 00:00:00,4,2020-03-09 00:00:00,5,ANTIOQUIA,5001,MEDELLIN,nan,1,m,Relacionado,Casa,Leve,Recuperado,,Tiempo,Otro
`
	path := writeCasesCSV(t, body)

	tbl, st, err := File(context.Background(), path, Options{ChunkSize: 2, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, int64(3), st.Rows)
	assert.Equal(t, int64(2), st.Malformed)
	assert.Equal(t, 2, st.Chunks)
	assert.Empty(t, st.UnknownColumns)
	assert.Positive(t, st.Bytes)

	ids := make([]string, 0, tbl.Len())
	for _, r := range tbl.Records {
		ids = append(ids, r.CaseID)
	}
	assert.Equal(t, []string{"1", "2", "4"}, ids)

	last := tbl.Records[2]
	assert.Equal(t, casedata.AgeUnknown, last.Age)
	assert.Equal(t, casedata.SexMale, last.Sex)
	assert.False(t, last.RecoveryDate.Valid())
	assert.Equal(t, "2020-03-09", last.NotificationDate.String())

	assert.True(t, tbl.Schema.IsCategorical(casedata.FieldDepartment))
	assert.True(t, tbl.Schema.HasColumn("tipo_de_recuperacion"))
	assert.False(t, tbl.Schema.HasColumn("fecha_de_muerte"))
}

func TestReaderSkipsBOMAndUnknownHeaders(t *testing.T) {
	in := "\xEF\xBB\xBFID de caso,Edad,Columna nueva\n1,30,x\n2,40,y\n"
	tbl, st, err := Reader(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"columna_nueva"}, st.UnknownColumns)
	assert.Equal(t, []string{"id_de_caso", "edad"}, tbl.Schema.Columns())
	assert.Equal(t, int32(40), tbl.Records[1].Age)
}

func TestReaderLogsOneProgressLinePerChunk(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger()
	in := "ID de caso\n1\n2\n3\n4\n5\n"
	_, st, err := Reader(context.Background(), strings.NewReader(in), Options{ChunkSize: 2, Logger: logger})
	require.NoError(t, err)
	assert.Equal(t, 3, st.Chunks)

	var progress int
	for _, m := range logs.Messages() {
		if m == "progress" {
			progress++
		}
	}
	assert.Equal(t, 3, progress)
	assert.Contains(t, logs.Messages(), "ingested")
}

func TestReaderCategoricalDecidedOverWholeTable(t *testing.T) {
	// With a threshold of 3 the first chunk alone shows 2 distinct states,
	// but the full table shows 4: the column must end up plain text.
	in := "ID de caso,Estado\n1,a\n2,b\n3,c\n4,d\n"
	tbl, _, err := Reader(context.Background(), strings.NewReader(in), Options{ChunkSize: 2, CategoricalThreshold: 3})
	require.NoError(t, err)
	assert.False(t, tbl.Schema.IsCategorical(casedata.FieldState))
}

func TestReaderQuotedFields(t *testing.T) {
	in := "ID de caso,Nombre municipio\n1,\"SAN JOSE, DEL GUAVIARE\"\n2,CALI \"VALLE\"\n"
	tbl, st, err := Reader(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Malformed)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "SAN JOSE, DEL GUAVIARE", tbl.Records[0].Municipality)
}

func TestReaderUnclosedQuoteCostsOneRow(t *testing.T) {
	in := "ID de caso,Nombre municipio,Edad\n1,CALI,30\n2,\"BUGA,40\n3,CALI,50\n4,CALI,60\r\n5,CALI,70"
	tbl, st, err := Reader(context.Background(), strings.NewReader(in), Options{ChunkSize: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(4), st.Rows)
	assert.Equal(t, int64(1), st.Malformed)
	ids := make([]string, 0, tbl.Len())
	for _, r := range tbl.Records {
		ids = append(ids, r.CaseID)
	}
	assert.Equal(t, []string{"1", "3", "4", "5"}, ids)
	assert.Equal(t, int32(70), tbl.Records[3].Age)
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []string
		wantErr bool
	}{
		{"plain", "1,CALI,30", []string{"1", "CALI", "30"}, false},
		{"empty cells", "1,,", []string{"1", "", ""}, false},
		{"quoted comma", `1,"SAN JOSE, DEL GUAVIARE",30`, []string{"1", "SAN JOSE, DEL GUAVIARE", "30"}, false},
		{"escaped quote", `1,"EL ""PASO""",30`, []string{"1", `EL "PASO"`, "30"}, false},
		{"bare quote kept", `1,CALI "VALLE",30`, []string{"1", `CALI "VALLE"`, "30"}, false},
		{"unclosed quote", `2,"BUGA,40`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitLine(tt.line, 7)
			if tt.wantErr {
				var pe *csv.ParseError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, 7, pe.Line)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileMissing(t *testing.T) {
	_, _, err := File(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReaderEmptyInput(t *testing.T) {
	_, _, err := Reader(context.Background(), strings.NewReader(""), Options{})
	require.Error(t, err)
}

func TestReaderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := "ID de caso\n1\n2\n3\n"
	_, _, err := Reader(ctx, strings.NewReader(in), Options{ChunkSize: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
