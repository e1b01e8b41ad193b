package casedata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2020-03-06", "2020-03-06"},
		{"2020-03-06 00:00:00", "2020-03-06"},
		{"2020-03-06T00:00:00.000", "2020-03-06"},
		{"6/3/2020 0:00:00", "2020-03-06"},
		{"06/03/2020", "2020-03-06"},
		{"2020/3/6", "2020-03-06"},
		{"20200306", "2020-03-06"},
		{"", ""},
		{"nan", ""},
		{"NaT", ""},
		{"no es fecha", ""},
		{"31/02/2020", ""},
		{"1800-01-01", ""},
		{"2300-01-01", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDate(tt.in).String())
		})
	}
}

func TestDateRoundTrip(t *testing.T) {
	d := NewDate(2021, time.January, 5)
	assert.Equal(t, "2021-01-05", d.String())
	assert.Equal(t, d, DateOf(d.Time()))
	assert.Equal(t, Date(0), NewDate(1970, time.January, 1))
	assert.Equal(t, Date(-1), NewDate(1969, time.December, 31))
	assert.Equal(t, "2021-01-06", d.AddDays(1).String())
	assert.Equal(t, NullDate, NullDate.AddDays(1))
}

func TestMonthAndWeekEnd(t *testing.T) {
	assert.Equal(t, "2020-02-29", MustParseDate("2020-02-10").MonthEnd().String())
	assert.Equal(t, "2020-12-31", MustParseDate("2020-12-01").MonthEnd().String())

	// 2021-01-04 is a Monday; its week closes on Sunday 2021-01-10.
	assert.Equal(t, "2021-01-10", MustParseDate("2021-01-04").WeekEnd().String())
	assert.Equal(t, "2021-01-10", MustParseDate("2021-01-10").WeekEnd().String())
	assert.Equal(t, "2021-01-17", MustParseDate("2021-01-11").WeekEnd().String())

	assert.False(t, NullDate.MonthEnd().Valid())
	assert.False(t, NullDate.WeekEnd().Valid())
}

func TestMustParseDatePanics(t *testing.T) {
	require.Panics(t, func() { MustParseDate("garbage") })
}
