// Package dataprocessing turns raw sheet rows into dashboard numbers.
//
// Every function here is total: malformed cells read as zero, empty inputs
// give zero or an empty series, and divisions by zero give zero. Nothing
// returns an error, so a half-filled spreadsheet still renders.
//
// # Normalization
//
// ToNumber reads the localized amounts the sheets hold ("$ 1.234.567,89",
// "12,5%", "100.000") as well as native numbers. ParseDate accepts ISO and
// day-first dates and spreadsheet serial numbers.
//
// # Aggregation
//
//	total := dataprocessing.SumByKey(rows, domain.ColValorVenta)
//	byMethod := dataprocessing.GroupAndSum(rows, domain.ColMetodoPago, domain.ColValorVenta, dataprocessing.OrderTotalDesc)
//	top := dataprocessing.TopN(byMethod, 5)
//	roas := dataprocessing.Ratio(total, adSpend)
//
// Rows with a blank grouping cell are collected under FallbackLabel.
//
// # Tiles
//
// Formatter builds domain.Kpi values: localized text, gauge score, color
// and performance level.
package dataprocessing
