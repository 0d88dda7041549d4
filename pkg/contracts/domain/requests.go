package domain

// AppendRowRequest is the body of POST /api/sheets.
type AppendRowRequest struct {
	Sheet string         `json:"sheet" validate:"required,sheetname"`
	Row   map[string]any `json:"row" validate:"required,min=1"`
}

// SheetRowsResponse mirrors the envelope the Apps Script returns for reads.
type SheetRowsResponse struct {
	Sheet SheetName `json:"sheet"`
	Rows  []Row     `json:"rows"`
}

// DateRangeQuery carries the raw from/to query parameters of a view request.
type DateRangeQuery struct {
	From string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}
