// Package stats computes the precomputed statistics bundle over a normalized
// case table, plus the ad-hoc grouped views the presentation layer asks for.
package stats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// LastUpdatedLayout formats Bundle.LastUpdated.
const LastUpdatedLayout = "2006-01-02 15:04:05"

// Counts maps a category value (or a YYYY-MM-DD period key) to a count.
type Counts map[string]int64

// Sum returns the total of all counts.
func (c Counts) Sum() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}

// Bundle is the full set of precomputed aggregates. Sections whose source
// column is absent from the table are left nil and omitted from JSON.
type Bundle struct {
	TotalRecords *int64     `json:"total_registros,omitempty"`
	DateRange    *DateRange `json:"rango_fechas,omitempty"`
	LastUpdated  string     `json:"ultima_actualizacion,omitempty"`

	ByState         Counts `json:"conteo_por_estado,omitempty"`
	BySex           Counts `json:"conteo_por_sexo,omitempty"`
	ByContagionType Counts `json:"conteo_por_tipo_de_contagio,omitempty"`
	ByLocation      Counts `json:"conteo_por_ubicacion_del_caso,omitempty"`
	ByRecovered     Counts `json:"conteo_por_recuperado,omitempty"`
	ByRecoveryType  Counts `json:"conteo_por_tipo_de_recuperacion,omitempty"`
	ByEthnicity     Counts `json:"conteo_por_pertenencia_etnica,omitempty"`

	Monthly Counts `json:"casos_por_mes,omitempty"`
	Weekly  Counts `json:"casos_por_semana,omitempty"`
	Daily   Counts `json:"casos_por_dia,omitempty"`

	TopDepartments    Ranking `json:"top_departamentos,omitempty"`
	TopMunicipalities Ranking `json:"top_municipios,omitempty"`

	Age             *AgeStats         `json:"estadisticas_edad,omitempty"`
	AgeDistribution Counts            `json:"distribucion_por_edad,omitempty"`
	AgeBySex        map[string]Counts `json:"distribucion_por_edad_y_sexo,omitempty"`

	WeeklyTrend *WeeklyTrend `json:"tendencia_semanal,omitempty"`
	Source      *Source      `json:"fuente,omitempty"`
}

// Total returns total_registros, or 0 when the section is absent.
func (b *Bundle) Total() int64 {
	if b == nil || b.TotalRecords == nil {
		return 0
	}
	return *b.TotalRecords
}

// Len returns the number of top-level sections present.
func (b *Bundle) Len() int {
	if b == nil {
		return 0
	}
	n := 0
	add := func(present bool) {
		if present {
			n++
		}
	}
	add(b.TotalRecords != nil)
	add(b.DateRange != nil)
	add(b.LastUpdated != "")
	for _, c := range b.categoryCounts() {
		add(len(*c.counts) > 0)
	}
	add(len(b.Monthly) > 0)
	add(len(b.Weekly) > 0)
	add(len(b.Daily) > 0)
	add(len(b.TopDepartments) > 0)
	add(len(b.TopMunicipalities) > 0)
	add(b.Age != nil)
	add(len(b.AgeDistribution) > 0)
	add(len(b.AgeBySex) > 0)
	add(b.WeeklyTrend != nil)
	add(b.Source != nil)
	return n
}

// Equal reports whether a and b hold the same aggregates. The run
// timestamp is ignored.
func Equal(a, b *Bundle) bool {
	if a == nil || b == nil {
		return a == b
	}
	ac, bc := *a, *b
	ac.LastUpdated, bc.LastUpdated = "", ""
	aj, err1 := json.Marshal(&ac)
	bj, err2 := json.Marshal(&bc)
	return err1 == nil && err2 == nil && bytes.Equal(aj, bj)
}

// DateRange is the earliest and latest notification date.
type DateRange struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// AgeStats describes the valid (strictly positive) ages.
type AgeStats struct {
	Mean   float64 `json:"promedio"`
	Median float64 `json:"mediana"`
	Min    int32   `json:"min"`
	Max    int32   `json:"max"`
	StdDev float64 `json:"desviacion_estandar"`
	Count  int64   `json:"n"`
}

// WeeklyTrend summarizes the weekly case series.
type WeeklyTrend struct {
	Peak          int64              `json:"pico"`
	PeakWeek      string             `json:"semana_pico"`
	Mean          float64            `json:"promedio_semanal"`
	Min           int64              `json:"minimo"`
	MovingAverage map[string]float64 `json:"media_movil_4_semanas,omitempty"`
}

// Source identifies the raw file a bundle was computed from.
type Source struct {
	Path        string    `json:"ruta"`
	SizeBytes   int64     `json:"tamano_bytes"`
	Modified    time.Time `json:"modificado"`
	Fingerprint string    `json:"huella"`
}

// Ranked is one entry of a Ranking.
type Ranked struct {
	Value string
	Count int64
}

// Ranking is an ordered list of value counts, highest first. It encodes as a
// JSON object whose key order is the rank order.
type Ranking []Ranked

// Counts returns the ranking as an unordered map.
func (r Ranking) Counts() Counts {
	m := make(Counts, len(r))
	for _, e := range r {
		m[e.Value] = e.Count
	}
	return m
}

func (r Ranking) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalNoEscape(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		fmt.Fprintf(&buf, ":%d", e.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Ranking) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("ranking: expected object, got %v", tok)
	}
	out := Ranking{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("ranking: expected key, got %v", tok)
		}
		var n int64
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("ranking %q: %w", key, err)
		}
		out = append(out, Ranked{Value: key, Count: n})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

func marshalNoEscape(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
