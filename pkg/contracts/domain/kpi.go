package domain

// PerformanceLevel buckets a gauge score for display.
type PerformanceLevel string

const (
	LevelPoor      PerformanceLevel = "POOR"
	LevelFair      PerformanceLevel = "FAIR"
	LevelGood      PerformanceLevel = "GOOD"
	LevelExcellent PerformanceLevel = "EXCELLENT"
)

// Gauge palette shared by the dashboard tiles.
const (
	ColorRed    = "#ef4444"
	ColorOrange = "#f97316"
	ColorYellow = "#eab308"
	ColorGreen  = "#22c55e"
	ColorTrack  = "#e5e7eb"
)

// Kpi is one dashboard tile. Values are built fresh for each request.
type Kpi struct {
	Key       string           `json:"key"`
	Label     string           `json:"label"`
	Value     float64          `json:"value"`
	Currency  bool             `json:"currency"`
	Unit      string           `json:"unit,omitempty"`
	Color     string           `json:"color,omitempty"`
	Max       float64          `json:"max,omitempty"`
	Formatted string           `json:"formatted"`
	Score     float64          `json:"score"`
	Level     PerformanceLevel `json:"level"`
	Warning   string           `json:"warning,omitempty"`
}

// SeriesPoint is one (label, total) bucket of a grouped aggregation.
type SeriesPoint struct {
	Label string  `json:"label"`
	Total float64 `json:"total"`
	Share float64 `json:"share,omitempty"`
}

// Series is an ordered sequence of buckets. Order is whatever the producing
// aggregation documents.
type Series []SeriesPoint

// Labels returns the bucket labels in order.
func (s Series) Labels() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Label
	}
	return out
}

// Total returns the sum of all bucket totals.
func (s Series) Total() float64 {
	var sum float64
	for _, p := range s {
		sum += p.Total
	}
	return sum
}

// Lookup returns the total for label and whether the bucket exists.
func (s Series) Lookup(label string) (float64, bool) {
	for _, p := range s {
		if p.Label == label {
			return p.Total, true
		}
	}
	return 0, false
}
