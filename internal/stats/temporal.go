package stats

import (
	"sort"

	"covidstats/internal/casedata"
)

// movingAverageWindow is the trailing window, in weeks, of the trend's
// moving average.
const movingAverageWindow = 4

// periodCounts buckets records by notification date. Month and week buckets
// are keyed by the last day of the period (weeks close on Sunday); only
// observed buckets appear.
func periodCounts(records []casedata.Record) (monthly, weekly, daily Counts) {
	byDay := make(map[casedata.Date]int64)
	for i := range records {
		if d := records[i].NotificationDate; d.Valid() {
			byDay[d]++
		}
	}
	monthly, weekly, daily = make(Counts), make(Counts), make(Counts)
	for d, n := range byDay {
		daily[d.String()] += n
		weekly[d.WeekEnd().String()] += n
		monthly[d.MonthEnd().String()] += n
	}
	return monthly, weekly, daily
}

// weeklyTrend summarizes a weekly series keyed by YYYY-MM-DD.
func weeklyTrend(weekly Counts) *WeeklyTrend {
	if len(weekly) == 0 {
		return nil
	}
	weeks := make([]string, 0, len(weekly))
	for k := range weekly {
		weeks = append(weeks, k)
	}
	// YYYY-MM-DD sorts chronologically.
	sort.Strings(weeks)

	tr := &WeeklyTrend{Min: weekly[weeks[0]]}
	var sum int64
	for _, w := range weeks {
		n := weekly[w]
		sum += n
		if n > tr.Peak {
			tr.Peak, tr.PeakWeek = n, w
		}
		if n < tr.Min {
			tr.Min = n
		}
	}
	tr.Mean = float64(sum) / float64(len(weeks))

	if len(weeks) >= movingAverageWindow {
		tr.MovingAverage = make(map[string]float64, len(weeks)-movingAverageWindow+1)
		var window int64
		for i, w := range weeks {
			window += weekly[w]
			if i >= movingAverageWindow {
				window -= weekly[weeks[i-movingAverageWindow]]
			}
			if i >= movingAverageWindow-1 {
				tr.MovingAverage[w] = float64(window) / movingAverageWindow
			}
		}
	}
	return tr
}
