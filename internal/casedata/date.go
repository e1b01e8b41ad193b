package casedata

import (
	"math"
	"strings"
	"time"
)

// DateLayout is the canonical key format for every emitted date.
const DateLayout = "2006-01-02"

// Date is a calendar date stored as days since 1970-01-01.
// The int32 representation matches the Parquet DATE logical type.
type Date int32

// NullDate marks a missing or unparseable date.
const NullDate Date = math.MinInt32

const secondsPerDay = 24 * 60 * 60

// Plausible range for case-record dates. Anything outside is parsed garbage.
const (
	minYear = 1900
	maxYear = 2100
)

// dateLayouts are tried in order against the date part of a cell (the time of
// day, if any, is cut off first). Slash dates are day-first: the source is
// published by a Colombian agency as d/m/yyyy.
var dateLayouts = []string{
	"2006-01-02",
	"2/1/2006",
	"2006/1/2",
	"2-1-2006",
	"20060102",
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	secs := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
	days := secs / secondsPerDay
	if secs%secondsPerDay < 0 {
		days--
	}
	return Date(days)
}

// NewDate builds a Date from its calendar parts.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Valid reports whether d holds a real date.
func (d Date) Valid() bool { return d != NullDate }

// Time returns midnight UTC of d. The zero time is returned for NullDate.
func (d Date) Time() time.Time {
	if !d.Valid() {
		return time.Time{}
	}
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// AddDays returns d shifted by n days. NullDate stays NullDate.
func (d Date) AddDays(n int) Date {
	if !d.Valid() {
		return d
	}
	return d + Date(n)
}

// String formats d as YYYY-MM-DD, or "" for NullDate.
func (d Date) String() string {
	if !d.Valid() {
		return ""
	}
	return d.Time().Format(DateLayout)
}

// MonthEnd returns the last day of d's month.
func (d Date) MonthEnd() Date {
	if !d.Valid() {
		return d
	}
	y, m, _ := d.Time().Date()
	return DateOf(time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC))
}

// WeekEnd returns the Sunday closing d's week (d itself when d is a Sunday).
func (d Date) WeekEnd() Date {
	if !d.Valid() {
		return d
	}
	wd := int(d.Time().Weekday())
	return d + Date((7-wd)%7)
}

// ParseDate coerces a raw cell into a Date. It never fails: anything it
// cannot read, including out-of-range years, comes back as NullDate.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return NullDate
	}
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() < minYear || t.Year() > maxYear {
			return NullDate
		}
		return DateOf(t)
	}
	return NullDate
}

// MustParseDate is ParseDate for literals known to be valid; it panics otherwise.
func MustParseDate(s string) Date {
	d := ParseDate(s)
	if !d.Valid() {
		panic("casedata: invalid date literal " + s)
	}
	return d
}
