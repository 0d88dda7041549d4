package domain

import "time"

// ViewName selects one of the dashboard pages.
type ViewName string

const (
	ViewOverview  ViewName = "overview"
	ViewSales     ViewName = "sales"
	ViewCampaigns ViewName = "campaigns"
	ViewCards     ViewName = "cards"
)

// AllViews lists the dashboard pages in navigation order.
func AllViews() []ViewName {
	return []ViewName{ViewOverview, ViewSales, ViewCampaigns, ViewCards}
}

// Valid reports whether v names a known page.
func (v ViewName) Valid() bool {
	switch v {
	case ViewOverview, ViewSales, ViewCampaigns, ViewCards:
		return true
	}
	return false
}

// DateRange bounds the dated rows a view aggregates. A zero bound is open.
type DateRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// IsZero reports whether neither bound is set.
func (d DateRange) IsZero() bool {
	return d.From.IsZero() && d.To.IsZero()
}

// Contains reports whether t falls inside the inclusive range. The upper
// bound covers the whole day it names.
func (d DateRange) Contains(t time.Time) bool {
	if !d.From.IsZero() && t.Before(d.From) {
		return false
	}
	if !d.To.IsZero() && !t.Before(d.To.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// SourceNotice reports how one sheet fed a view. Message is set when the
// sheet could not be read and the view fell back to no rows.
type SourceNotice struct {
	Sheet   SheetName `json:"sheet"`
	Rows    int       `json:"rows"`
	Message string    `json:"message,omitempty"`
}

// Degraded reports whether the sheet failed to load.
func (n SourceNotice) Degraded() bool {
	return n.Message != ""
}

// DashboardView is the payload every page renders: KPI tiles, named chart
// series, an optional table and per-sheet load notices.
type DashboardView struct {
	View        ViewName          `json:"view"`
	Range       DateRange         `json:"range"`
	GeneratedAt time.Time         `json:"generated_at"`
	Kpis        []Kpi             `json:"kpis"`
	Series      map[string]Series `json:"series"`
	SeriesOrder []string          `json:"series_order"`
	Table       *Table            `json:"table,omitempty"`
	Sources     []SourceNotice    `json:"sources"`
}

// AddSeries records a named series and keeps track of insertion order so
// exports list charts the way the page shows them.
func (v *DashboardView) AddSeries(name string, s Series) {
	if v.Series == nil {
		v.Series = make(map[string]Series)
	}
	if _, exists := v.Series[name]; !exists {
		v.SeriesOrder = append(v.SeriesOrder, name)
	}
	if s == nil {
		s = Series{}
	}
	v.Series[name] = s
}

// Kpi returns the tile with the given key.
func (v *DashboardView) Kpi(key string) (Kpi, bool) {
	for _, k := range v.Kpis {
		if k.Key == key {
			return k, true
		}
	}
	return Kpi{}, false
}

// Degraded reports whether any source sheet failed to load.
func (v *DashboardView) Degraded() bool {
	for _, s := range v.Sources {
		if s.Degraded() {
			return true
		}
	}
	return false
}

// Table is a column-ordered listing of rows, used for the sales ledger and
// the top campaigns list.
type Table struct {
	Title   string   `json:"title"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Records renders the table as text cells in column order.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			rec[i] = row.Text(col)
		}
		out = append(out, rec)
	}
	return out
}
