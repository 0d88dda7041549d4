package dataprocessing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/currency"
)

// ToNumber turns a spreadsheet cell into a finite float64. It never fails:
//
//   - Go numeric kinds and json.Number pass through unchanged.
//   - Strings are read as localized amounts: whitespace, currency symbols,
//     a leading or trailing ISO 4217 code ("COP", "USD") and "%" are dropped, every "." is treated as a thousands separator and the
//     first "," becomes the decimal point ("$ 1.234.567,89" -> 1234567.89).
//   - Anything else, and any non-finite result, is 0.
func ToNumber(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return finite(f)
		}
		return parseLocalized(n.String())
	case string:
		return parseLocalized(n)
	default:
		return 0
	}
}

// parseLocalized parses es-CO style amounts as the dashboard sheets store them.
func parseLocalized(s string) float64 {
	s = stripCurrencyCode(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r), unicode.Is(unicode.Sc, r), r == '%':
			continue
		case r == '.':
			continue
		default:
			b.WriteRune(r)
		}
	}
	cleaned := strings.Replace(b.String(), ",", ".", 1)
	if cleaned == "" {
		return 0
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

// stripCurrencyCode drops an ISO 4217 code written before or after the
// amount, as in "COP 1.234" or "1.234,56 usd".
func stripCurrencyCode(s string) string {
	s = strings.TrimFunc(s, unicode.IsSpace)
	if len(s) > 3 && !isLetter(s[3]) && isCurrencyCode(s[:3]) {
		s = strings.TrimLeftFunc(s[3:], unicode.IsSpace)
	}
	if n := len(s); n > 3 && !isLetter(s[n-4]) && isCurrencyCode(s[n-3:]) {
		s = strings.TrimRightFunc(s[:n-3], unicode.IsSpace)
	}
	return s
}

func isLetter(b byte) bool {
	return b >= 0x80 || unicode.IsLetter(rune(b))
}

func isCurrencyCode(s string) bool {
	_, err := currency.ParseISO(s)
	return err == nil
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// dateLayouts are the shapes dates take when they leave Apps Script or are
// typed by hand into the sheet.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"2006/01/02",
	"02-01-2006",
}

// Spreadsheet serial days outside this window are not dates.
const (
	minSerialDate = 1
	maxSerialDate = 2958465
)

// ParseDate reads a cell as a calendar day. The result is midnight UTC of
// the day written in the cell, regardless of the offset it carried.
func ParseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return civilDay(d), !d.IsZero()
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return civilDay(t), true
			}
		}
		return time.Time{}, false
	default:
		serial := ToNumber(v)
		if serial < minSerialDate || serial > maxSerialDate {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return civilDay(t), true
	}
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
