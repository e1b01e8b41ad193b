package stats

import (
	"math"
	"slices"

	"covidstats/internal/casedata"
)

// AgeBuckets are the distribution labels: ten-year half-open bins with an
// open-ended last bin.
var AgeBuckets = []string{"0-9", "10-19", "20-29", "30-39", "40-49", "50-59", "60-69", "70-79", "80-89", "90-99", "100+"}

// AgeBucket returns the label of the bin holding age.
func AgeBucket(age int32) string {
	i := int(age / 10)
	if i >= len(AgeBuckets) {
		i = len(AgeBuckets) - 1
	}
	if i < 0 {
		i = 0
	}
	return AgeBuckets[i]
}

func emptyBuckets() Counts {
	c := make(Counts, len(AgeBuckets))
	for _, b := range AgeBuckets {
		c[b] = 0
	}
	return c
}

// ageStats describes the records with a valid age, or returns nil when
// there are none.
func ageStats(records []casedata.Record) *AgeStats {
	var ages []int32
	var sum float64
	for i := range records {
		if records[i].HasValidAge() {
			ages = append(ages, records[i].Age)
			sum += float64(records[i].Age)
		}
	}
	if len(ages) == 0 {
		return nil
	}
	slices.Sort(ages)

	n := len(ages)
	mean := sum / float64(n)
	var sq float64
	for _, a := range ages {
		d := float64(a) - mean
		sq += d * d
	}

	median := float64(ages[n/2])
	if n%2 == 0 {
		median = (float64(ages[n/2-1]) + float64(ages[n/2])) / 2
	}
	return &AgeStats{
		Mean:   mean,
		Median: median,
		Min:    ages[0],
		Max:    ages[n-1],
		StdDev: math.Sqrt(sq / float64(n)),
		Count:  int64(n),
	}
}

// ageDistribution counts valid ages per bucket. Every bucket is present.
func ageDistribution(records []casedata.Record) Counts {
	c := emptyBuckets()
	for i := range records {
		if records[i].HasValidAge() {
			c[AgeBucket(records[i].Age)]++
		}
	}
	return c
}

// ageBySex cross-tabulates valid ages by sex as sex -> bucket -> count.
// Records of unknown sex are left out; every observed sex carries all
// buckets.
func ageBySex(records []casedata.Record) map[string]Counts {
	out := make(map[string]Counts)
	for i := range records {
		r := &records[i]
		if !r.HasValidAge() || r.Sex == "" {
			continue
		}
		c, ok := out[r.Sex]
		if !ok {
			c = emptyBuckets()
			out[r.Sex] = c
		}
		c[AgeBucket(r.Age)]++
	}
	return out
}
