package casedata

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonIdentRe = regexp.MustCompile(`[^a-z0-9_]+`)

// NormalizeHeader maps a raw header to the canonical naming scheme:
// lower-case, diacritics stripped, any run of characters outside
// [a-z0-9_] replaced by a single underscore.
//
//	"Fecha de notificación"        → "fecha_de_notificacion"
//	"Código DIVIPOLA departamento" → "codigo_divipola_departamento"
func NormalizeHeader(h string) string {
	h = strings.ToLower(h)
	// NFKD splits accented letters into base + combining mark; dropping every
	// non-ASCII rune then removes the marks (and a leading BOM).
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	if s, _, err := transform.String(t, h); err == nil {
		h = s
	}
	return nonIdentRe.ReplaceAllString(strings.ToLower(h), "_")
}

// IsMissing reports whether a trimmed cell is one of the textual spellings
// of a null value.
func IsMissing(s string) bool {
	switch s {
	case "", "nan", "NaN", "NAN", "<NA>", "NaT", "None", "null", "NULL":
		return true
	}
	return false
}

// CleanText trims a raw cell, forces valid UTF-8 and maps null spellings
// to "".
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return ""
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

// ParseAge reads an age cell. Unparseable, negative or non-finite values
// become AgeUnknown; fractional ages are truncated.
func ParseAge(s string) int32 {
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return AgeUnknown
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
		return AgeUnknown
	}
	return int32(f)
}

// NormalizeSex folds a sex cell onto M, F or "" (unknown).
func NormalizeSex(s string) string {
	switch strings.ToUpper(CleanText(s)) {
	case "M", "MASCULINO", "HOMBRE":
		return SexMale
	case "F", "FEMENINO", "MUJER":
		return SexFemale
	}
	return ""
}
