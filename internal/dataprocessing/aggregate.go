package dataprocessing

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"fennixdash/pkg/contracts/domain"
)

// FallbackLabel is the bucket for rows whose grouping cell is missing or blank.
const FallbackLabel = "Sin dato"

// Order selects how grouped buckets are returned.
type Order int

const (
	// OrderInsertion keeps buckets in the order their label was first seen.
	OrderInsertion Order = iota
	// OrderTotalDesc sorts buckets by total, largest first. Ties keep
	// first-seen order.
	OrderTotalDesc
)

func (o Order) String() string {
	switch o {
	case OrderInsertion:
		return "insertion"
	case OrderTotalDesc:
		return "total_desc"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

// WeightFunc yields the amount a row contributes to its bucket.
type WeightFunc func(domain.Row) float64

// SumOf weighs each row by the normalized value of field.
func SumOf(field string) WeightFunc {
	return func(r domain.Row) float64 {
		return ToNumber(r.Get(field))
	}
}

// CountRows weighs every row as 1.
func CountRows(domain.Row) float64 { return 1 }

// QuantityOf weighs each row by field, counting a missing or zero quantity
// as a single unit.
func QuantityOf(field string) WeightFunc {
	return func(r domain.Row) float64 {
		if q := ToNumber(r.Get(field)); q != 0 {
			return q
		}
		return 1
	}
}

// GroupSpec describes a grouping pass.
type GroupSpec struct {
	Field    string
	Fallback string
	Order    Order
}

// SumByKey adds up the normalized values of field across rows.
func SumByKey(rows []domain.Row, field string) float64 {
	return SumWhere(rows, field, nil)
}

// SumWhere adds up field over the rows accepted by keep. A nil keep accepts
// every row.
func SumWhere(rows []domain.Row, field string, keep func(domain.Row) bool) float64 {
	var total float64
	for _, r := range rows {
		if keep != nil && !keep(r) {
			continue
		}
		total += ToNumber(r.Get(field))
	}
	return total
}

// CountWhere counts the rows accepted by keep.
func CountWhere(rows []domain.Row, keep func(domain.Row) bool) int {
	n := 0
	for _, r := range rows {
		if keep == nil || keep(r) {
			n++
		}
	}
	return n
}

// Average is SumByKey divided by the number of rows, 0 for no rows.
func Average(rows []domain.Row, field string) float64 {
	if len(rows) == 0 {
		return 0
	}
	return SumByKey(rows, field) / float64(len(rows))
}

// GroupBy partitions rows by spec.Field and folds weight into each bucket.
// Blank keys land in spec.Fallback, or FallbackLabel when that is empty.
func GroupBy(rows []domain.Row, spec GroupSpec, weight WeightFunc) domain.Series {
	fallback := spec.Fallback
	if fallback == "" {
		fallback = FallbackLabel
	}

	index := make(map[string]int)
	out := domain.Series{}
	for _, r := range rows {
		label := groupKey(r, spec.Field)
		if label == "" {
			label = fallback
		}
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, domain.SeriesPoint{Label: label})
		}
		out[i].Total += weight(r)
	}

	if spec.Order == OrderTotalDesc {
		sortDesc(out)
	}
	return out
}

// groupKey is the bucket label for a row. Numeric cells are keyed by value
// so 1, 1.0 and json.Number("1.0") share a bucket.
func groupKey(r domain.Row, field string) string {
	switch v := r.Get(field).(type) {
	case json.Number, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return strconv.FormatFloat(ToNumber(v), 'f', -1, 64)
	default:
		return r.Text(field)
	}
}

// GroupAndSum sums valueField per distinct groupField value. The sum of all
// bucket totals equals SumByKey(rows, valueField).
func GroupAndSum(rows []domain.Row, groupField, valueField string, order Order) domain.Series {
	return GroupBy(rows, GroupSpec{Field: groupField, Order: order}, SumOf(valueField))
}

// GroupAndCount counts rows per distinct groupField value.
func GroupAndCount(rows []domain.Row, groupField string, order Order) domain.Series {
	return GroupBy(rows, GroupSpec{Field: groupField, Order: order}, CountRows)
}

// TopN returns the n largest buckets, largest first. Equal totals keep their
// relative order from s. n <= 0 yields an empty series. s is not modified.
func TopN(s domain.Series, n int) domain.Series {
	if n <= 0 || len(s) == 0 {
		return domain.Series{}
	}
	out := make(domain.Series, len(s))
	copy(out, s)
	sortDesc(out)
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// TopRowsBy returns the n rows with the largest normalized field, largest
// first, ties in input order.
func TopRowsBy(rows []domain.Row, field string, n int) []domain.Row {
	if n <= 0 || len(rows) == 0 {
		return []domain.Row{}
	}
	out := make([]domain.Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return ToNumber(out[i].Get(field)) > ToNumber(out[j].Get(field))
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// Share fills in each bucket's percentage of the series total.
func Share(s domain.Series) domain.Series {
	total := s.Total()
	out := make(domain.Series, len(s))
	for i, p := range s {
		p.Share = Percent(p.Total, total)
		out[i] = p
	}
	return out
}

// Ratio divides without scaling, as ROAS does. A zero denominator or a
// non-finite quotient gives 0.
func Ratio(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return finite(numerator / denominator)
}

// Percent is Ratio scaled to 0..100 for margins, CTR and utilization.
func Percent(numerator, denominator float64) float64 {
	return finite(Ratio(numerator, denominator) * 100)
}

// Round2 rounds to cents, used before values reach the wire.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sortDesc(s domain.Series) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Total > s[j].Total
	})
}
