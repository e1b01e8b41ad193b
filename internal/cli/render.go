package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"covidstats/internal/casedata"
	"covidstats/internal/stats"
)

// recordColumns are the columns shown when printing rows.
var recordColumns = []casedata.Field{
	casedata.FieldCaseID,
	casedata.FieldNotificationDate,
	casedata.FieldDepartment,
	casedata.FieldMunicipality,
	casedata.FieldAge,
	casedata.FieldSex,
	casedata.FieldState,
}

func newTable(w io.Writer, title string, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	if header != nil {
		t.AppendHeader(header)
	}
	return t
}

// renderCounts prints c as a two-column table. ordered keeps the keys in
// the given order; otherwise rows go by descending count.
func renderCounts(w io.Writer, title, key string, c stats.Counts, ordered []string) {
	if len(c) == 0 {
		return
	}
	keys := ordered
	if keys == nil {
		keys = make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if c[keys[i]] != c[keys[j]] {
				return c[keys[i]] > c[keys[j]]
			}
			return keys[i] < keys[j]
		})
	}
	t := newTable(w, title, table.Row{key, "casos"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, c[k]})
	}
	t.Render()
}

func renderRanking(w io.Writer, title, key string, r stats.Ranking) {
	if len(r) == 0 {
		return
	}
	t := newTable(w, title, table.Row{"#", key, "casos"})
	for i, e := range r {
		t.AppendRow(table.Row{i + 1, e.Value, e.Count})
	}
	t.Render()
}

func periodKeys(c stats.Counts) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// renderBundle prints every section present in b.
func renderBundle(w io.Writer, b *stats.Bundle) {
	t := newTable(w, "resumen", nil)
	t.AppendRow(table.Row{"total_registros", b.Total()})
	if b.DateRange != nil {
		t.AppendRow(table.Row{"rango_fechas", b.DateRange.Min + " .. " + b.DateRange.Max})
	}
	if b.LastUpdated != "" {
		t.AppendRow(table.Row{"ultima_actualizacion", b.LastUpdated})
	}
	if b.Source != nil {
		t.AppendRow(table.Row{"fuente", b.Source.Path})
	}
	t.Render()

	renderCounts(w, "conteo_por_estado", "estado", b.ByState, nil)
	renderCounts(w, "conteo_por_sexo", "sexo", b.BySex, nil)
	renderCounts(w, "conteo_por_tipo_de_contagio", "tipo", b.ByContagionType, nil)
	renderCounts(w, "conteo_por_ubicacion_del_caso", "ubicacion", b.ByLocation, nil)
	renderCounts(w, "conteo_por_recuperado", "recuperado", b.ByRecovered, nil)
	renderCounts(w, "conteo_por_tipo_de_recuperacion", "tipo", b.ByRecoveryType, nil)
	renderCounts(w, "conteo_por_pertenencia_etnica", "pertenencia", b.ByEthnicity, nil)
	renderRanking(w, "top_departamentos", "departamento", b.TopDepartments)
	renderRanking(w, "top_municipios", "municipio", b.TopMunicipalities)
	renderCounts(w, "casos_por_mes", "mes", b.Monthly, periodKeys(b.Monthly))

	if a := b.Age; a != nil {
		t := newTable(w, "estadisticas_edad", table.Row{"n", "promedio", "mediana", "min", "max", "desviacion_estandar"})
		t.AppendRow(table.Row{a.Count, formatFloat(a.Mean), formatFloat(a.Median), a.Min, a.Max, formatFloat(a.StdDev)})
		t.Render()
	}
	renderCounts(w, "distribucion_por_edad", "edad", b.AgeDistribution, stats.AgeBuckets)
	if len(b.AgeBySex) > 0 {
		sexes := make([]string, 0, len(b.AgeBySex))
		for s := range b.AgeBySex {
			sexes = append(sexes, s)
		}
		sort.Strings(sexes)
		header := table.Row{"edad"}
		for _, s := range sexes {
			header = append(header, s)
		}
		t := newTable(w, "distribucion_por_edad_y_sexo", header)
		for _, bucket := range stats.AgeBuckets {
			row := table.Row{bucket}
			for _, s := range sexes {
				row = append(row, b.AgeBySex[s][bucket])
			}
			t.AppendRow(row)
		}
		t.Render()
	}
	if tr := b.WeeklyTrend; tr != nil {
		t := newTable(w, "tendencia_semanal", table.Row{"pico", "semana_pico", "promedio_semanal", "minimo"})
		t.AppendRow(table.Row{tr.Peak, tr.PeakWeek, formatFloat(tr.Mean), tr.Min})
		t.Render()
	}
}

// renderRecords prints up to limit rows of tbl.
func renderRecords(w io.Writer, tbl *casedata.Table, limit int) {
	var fields []casedata.Field
	header := table.Row{}
	for _, f := range recordColumns {
		if tbl.Schema.Has(f) {
			fields = append(fields, f)
			header = append(header, f.Name())
		}
	}
	if len(fields) == 0 || tbl.Len() == 0 || limit <= 0 {
		return
	}
	t := newTable(w, "", header)
	for i := range tbl.Records {
		if i == limit {
			break
		}
		r := &tbl.Records[i]
		row := make(table.Row, len(fields))
		for j, f := range fields {
			row[j] = formatCell(r, f)
		}
		t.AppendRow(row)
	}
	t.Render()
}

func formatCell(r *casedata.Record, f casedata.Field) string {
	switch f.Kind() {
	case casedata.KindDate:
		if d := r.Date(f); d.Valid() {
			return d.String()
		}
		return ""
	case casedata.KindAge:
		if r.Age == casedata.AgeUnknown {
			return ""
		}
		return strconv.Itoa(int(r.Age))
	default:
		return r.Text(f)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatFraction(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
