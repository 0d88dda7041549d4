package dataprocessing

import (
	"fmt"
	"sort"
	"time"

	"fennixdash/pkg/contracts/domain"
)

// Period is the width of a time bucket.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts day, week or month.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return p, nil
	case "":
		return PeriodDay, nil
	default:
		return "", fmt.Errorf("unsupported period %q", s)
	}
}

// bucketStart maps a day onto the first day of its period. Weeks start on
// Monday.
func (p Period) bucketStart(day time.Time) time.Time {
	switch p {
	case PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonth:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func (p Period) label(start time.Time) string {
	if p == PeriodMonth {
		return start.Format("2006-01")
	}
	return start.Format("2006-01-02")
}

// SumByPeriod sums valueField into chronological buckets keyed by the date in
// dateField. Rows whose date cannot be read are collected in a trailing
// FallbackLabel bucket.
func SumByPeriod(rows []domain.Row, dateField, valueField string, period Period) domain.Series {
	totals := make(map[time.Time]float64)
	var undated float64
	hasUndated := false

	for _, r := range rows {
		v := ToNumber(r.Get(valueField))
		day, ok := ParseDate(r.Get(dateField))
		if !ok {
			undated += v
			hasUndated = true
			continue
		}
		totals[period.bucketStart(day)] += v
	}

	keys := make([]time.Time, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	out := make(domain.Series, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, domain.SeriesPoint{Label: period.label(k), Total: totals[k]})
	}
	if hasUndated {
		out = append(out, domain.SeriesPoint{Label: FallbackLabel, Total: undated})
	}
	return out
}

// FilterByDate keeps the rows whose dateField falls inside r. An empty range
// returns rows unchanged; otherwise rows without a readable date are dropped.
func FilterByDate(rows []domain.Row, dateField string, r domain.DateRange) []domain.Row {
	if r.IsZero() {
		return rows
	}
	out := make([]domain.Row, 0, len(rows))
	for _, row := range rows {
		day, ok := ParseDate(row.Get(dateField))
		if ok && r.Contains(day) {
			out = append(out, row)
		}
	}
	return out
}
