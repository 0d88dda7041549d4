package dataprocessing

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"fennixdash/pkg/contracts/domain"
)

// DefaultLocale is the locale amounts are rendered in.
var DefaultLocale = language.MustParse("es-CO")

// KpiSpec is the raw material for a tile before presentation rules apply.
type KpiSpec struct {
	Key      string
	Label    string
	Value    float64
	Currency bool
	Unit     string
	Color    string
	Max      float64
	Warning  string
}

// Formatter renders KPI values for one locale.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter returns a formatter for tag.
func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{printer: message.NewPrinter(tag)}
}

// NewFormatterFor parses a BCP 47 locale, falling back to DefaultLocale.
func NewFormatterFor(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = DefaultLocale
	}
	return NewFormatter(tag)
}

// Currency renders a peso amount without decimals, e.g. "$ 1.234.567".
func (f *Formatter) Currency(v float64) string {
	v = math.Round(finite(v))
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "$ " + f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(0)))
}

// Decimal renders v with up to two fraction digits.
func (f *Formatter) Decimal(v float64) string {
	return f.printer.Sprint(number.Decimal(finite(v), number.MaxFractionDigits(2)))
}

// Value applies the tile rules. Only tiles flagged as currency render as
// pesos, so large counts stay plain numbers. Percentages get one decimal and
// everything else is a localized number followed by its unit.
func (f *Formatter) Value(v float64, currency bool, unit string) string {
	switch {
	case currency:
		return f.Currency(v)
	case unit == "%":
		return fmt.Sprintf("%.1f%%", finite(v))
	case unit != "":
		return f.Decimal(v) + " " + unit
	default:
		return f.Decimal(v)
	}
}

// Build turns a spec into a finished tile.
func (f *Formatter) Build(spec KpiSpec) domain.Kpi {
	value := finite(spec.Value)
	score := GaugeScore(value, spec.Max, spec.Unit, spec.Color)
	color := spec.Color
	if color == "" {
		color = ActiveColor(score)
	}
	return domain.Kpi{
		Key:       spec.Key,
		Label:     spec.Label,
		Value:     value,
		Currency:  spec.Currency,
		Unit:      spec.Unit,
		Color:     color,
		Max:       spec.Max,
		Formatted: f.Value(value, spec.Currency, spec.Unit),
		Score:     score,
		Level:     LevelFor(score),
		Warning:   spec.Warning,
	}
}

// GaugeScore is how full a tile's gauge is drawn, 0..100. An explicit max
// scales the value; small unitless or percent values are used directly;
// otherwise the tile's color decides.
func GaugeScore(value, max float64, unit, color string) float64 {
	var pct float64
	switch {
	case max != 0:
		pct = value / max * 100
	case value <= 100 && (unit == "" || unit == "%"):
		pct = value
	default:
		pct = scoreForColor(color)
	}
	pct = finite(pct)
	return math.Min(math.Max(pct, 0), 100)
}

func scoreForColor(color string) float64 {
	c := strings.ToLower(color)
	switch {
	case strings.Contains(c, "red") || c == domain.ColorRed:
		return 25
	case strings.Contains(c, "orange") || c == domain.ColorOrange:
		return 50
	case strings.Contains(c, "yellow") || c == domain.ColorYellow:
		return 75
	case strings.Contains(c, "green") || c == domain.ColorGreen:
		return 90
	default:
		return 75
	}
}

// ActiveColor picks the gauge color for tiles that did not set one.
func ActiveColor(score float64) string {
	switch {
	case score > 80:
		return domain.ColorGreen
	case score > 50:
		return domain.ColorYellow
	default:
		return domain.ColorRed
	}
}

// LevelFor buckets a gauge score.
func LevelFor(score float64) domain.PerformanceLevel {
	switch {
	case score > 80:
		return domain.LevelExcellent
	case score > 50:
		return domain.LevelGood
	case score > 25:
		return domain.LevelFair
	default:
		return domain.LevelPoor
	}
}
