package pipeline

import (
	"time"

	"github.com/stwalsh4118/dissent/internal/models"
)

// MomentumWindow is the trailing window, in days, of the momentum rolling sum.
// The window uses min-periods 1, so the first day already carries a value.
const MomentumWindow = 7

const (
	secondsPerDay = 24 * 60 * 60

	// unixEpochOrdinal is the proleptic Gregorian ordinal of 1970-01-01.
	unixEpochOrdinal = 719163
)

// SeriesPoint is one daily value of a chart series.
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Series holds the daily time series derived from the filtered rows. Every series covers
// the same contiguous range of days, from the first to the last dated row, with empty
// days present as zeros.
type Series struct {
	Daily             []SeriesPoint `json:"daily"`
	Cumulative        []SeriesPoint `json:"cumulative"`
	DailyParticipants []SeriesPoint `json:"dailyParticipants"`
	Momentum          []SeriesPoint `json:"momentum"`
	Trendline         []SeriesPoint `json:"trendline"`
}

// Days returns the number of daily buckets in the series.
func (s Series) Days() int {
	return len(s.Daily)
}

// dailyBuckets is the per-day event count and participant sum over a contiguous range.
type dailyBuckets struct {
	first  time.Time
	counts []int
	sums   []float64
}

func bucketByDay(events []models.Event) (dailyBuckets, bool) {
	var first, last time.Time
	found := false
	for i := range events {
		d := events[i].Date
		if d == nil {
			continue
		}
		if !found || d.Before(first) {
			first = *d
		}
		if !found || d.After(last) {
			last = *d
		}
		found = true
	}
	if !found {
		return dailyBuckets{}, false
	}
	first = time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	last = time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)

	n := dayIndex(first, last) + 1
	b := dailyBuckets{
		first:  first,
		counts: make([]int, n),
		sums:   make([]float64, n),
	}
	for i := range events {
		d := events[i].Date
		if d == nil {
			continue
		}
		idx := dayIndex(first, *d)
		b.counts[idx]++
		if events[i].SizeMean != nil {
			b.sums[idx] += *events[i].SizeMean
		}
	}
	return b, true
}

func dayIndex(first, t time.Time) int {
	return int(unixDay(t) - unixDay(first))
}

// unixDay returns the number of whole days between the Unix epoch and t's calendar day.
func unixDay(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}

func (b dailyBuckets) date(i int) string {
	return b.first.AddDate(0, 0, i).Format(models.DateLayout)
}

// BuildSeries computes daily counts, cumulative counts, daily participant sums, the
// momentum series and its linear trendline. Rows without a date are ignored. An input
// with no dated rows yields empty, non-nil series.
func BuildSeries(events []models.Event) Series {
	s := Series{
		Daily:             []SeriesPoint{},
		Cumulative:        []SeriesPoint{},
		DailyParticipants: []SeriesPoint{},
		Momentum:          []SeriesPoint{},
		Trendline:         []SeriesPoint{},
	}

	b, ok := bucketByDay(events)
	if !ok {
		return s
	}

	n := len(b.counts)
	raw := make([]float64, n)
	running := 0
	for i := 0; i < n; i++ {
		date := b.date(i)
		running += b.counts[i]
		raw[i] = b.sums[i] * float64(b.counts[i])

		s.Daily = append(s.Daily, SeriesPoint{Date: date, Value: float64(b.counts[i])})
		s.Cumulative = append(s.Cumulative, SeriesPoint{Date: date, Value: float64(running)})
		s.DailyParticipants = append(s.DailyParticipants, SeriesPoint{Date: date, Value: b.sums[i]})
	}

	rolled := RollingSum(raw, MomentumWindow)
	xs := make([]float64, n)
	for i := 0; i < n; i++ {
		s.Momentum = append(s.Momentum, SeriesPoint{Date: b.date(i), Value: rolled[i]})
		xs[i] = float64(ordinal(b.first.AddDate(0, 0, i)))
	}

	if slope, intercept, ok := Trendline(xs, rolled); ok {
		for i := 0; i < n; i++ {
			s.Trendline = append(s.Trendline, SeriesPoint{
				Date:  b.date(i),
				Value: slope*xs[i] + intercept,
			})
		}
	}
	return s
}

// RollingSum returns the trailing sum of values over window entries with min-periods 1.
func RollingSum(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window < 1 {
		window = 1
	}
	// Each window is summed afresh; a running subtraction can drift below zero.
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for _, v := range values[start : i+1] {
			sum += v
		}
		out[i] = sum
	}
	return out
}

// Trendline fits y = slope·x + intercept by ordinary least squares.
// It needs at least two points with distinct x values.
func Trendline(xs, ys []float64) (slope, intercept float64, ok bool) {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0, 0, false
	}

	var meanX, meanY float64
	for i := 0; i < n; i++ {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)

	var sxx, sxy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		sxx += dx * dx
		sxy += dx * (ys[i] - meanY)
	}
	if sxx == 0 {
		return 0, 0, false
	}
	slope = sxy / sxx
	intercept = meanY - slope*meanX
	return slope, intercept, true
}

// ordinal returns the proleptic Gregorian day number with 0001-01-01 as day 1.
func ordinal(t time.Time) int64 {
	return unixDay(t) + unixEpochOrdinal
}
