package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "fennixdash/internal/errors"
	mw "fennixdash/internal/middleware"
	"fennixdash/pkg/contracts/domain"
)

// readAction is the only action the proxy understands on GET.
const readAction = "getSheet"

// SheetsHandler proxies reads and appends to the spreadsheet backend. Unlike
// the views it reports upstream failures to the caller.
type SheetsHandler struct {
	backend      SheetsBackend
	validator    *mw.Validator
	logger       *slog.Logger
	audit        func(http.Handler) http.Handler
	errorHandler *apierrors.ErrorHandler
}

// NewSheetsHandler creates the proxy handler.
func NewSheetsHandler(backend SheetsBackend, validator *mw.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SheetsHandler {
	return &SheetsHandler{
		backend:      backend,
		validator:    validator,
		logger:       logger.With(slog.String("component", "sheets_handler")),
		audit:        mw.AuditLog(logger),
		errorHandler: errorHandler,
	}
}

// Routes returns the proxy routes, mounted under /api/sheets.
func (h *SheetsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetSheet)
	r.With(mw.ContentTypeValidator(h.errorHandler, "application/json"), h.audit).
		Post("/", h.AppendRow)
	r.Get("/names", h.SheetNames)

	r.MethodNotAllowed(h.errorHandler.MethodNotAllowed)
	return r
}

// GetSheet handles GET /api/sheets?sheet=<name>. The Apps Script form
// ?action=getSheet&sheet=<name> is accepted as well.
func (h *SheetsHandler) GetSheet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if action := query.Get("action"); action != "" && action != readAction {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("action", "action must be "+readAction))
		return
	}

	sheet, err := domain.ParseSheetName(query.Get("sheet"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("sheet", err.Error()))
		return
	}

	start := time.Now()
	rows, err := h.backend.Rows(ctx, sheet)
	if err != nil {
		h.upstreamFailure(w, r, "read", sheet, err)
		return
	}

	h.logger.DebugContext(ctx, "sheet proxied",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("sheet", sheet.String()),
		slog.Int("rows", len(rows)),
		slog.Duration("duration", time.Since(start)),
	)

	if rows == nil {
		rows = []domain.Row{}
	}
	render.JSON(w, r, domain.SheetRowsResponse{Sheet: sheet, Rows: rows})
}

// AppendRow handles POST /api/sheets with {"sheet": ..., "row": {...}} and
// relays the backend's JSON answer.
func (h *SheetsHandler) AppendRow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.AppendRowRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	sheet := domain.SheetName(req.Sheet)
	metrics := mw.BusinessMetricsFromContext(ctx)

	result, err := h.backend.Append(ctx, sheet, domain.Row(req.Row))
	metrics.RecordAppend(ctx, sheet.String(), err == nil)
	if err != nil {
		h.upstreamFailure(w, r, "append", sheet, err)
		return
	}

	h.logger.InfoContext(ctx, "row appended",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("sheet", sheet.String()),
		slog.Int("fields", len(req.Row)),
	)

	if result == nil {
		result = map[string]any{}
	}
	render.JSON(w, r, result)
}

// SheetNames handles GET /api/sheets/names
func (h *SheetsHandler) SheetNames(w http.ResponseWriter, r *http.Request) {
	names := domain.SheetNameStrings()
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   names,
		"count":  len(names),
	})
}

// upstreamFailure maps a backend error. Cancellation and validation keep
// their own status; everything else is the backend's fault and answers 502.
func (h *SheetsHandler) upstreamFailure(w http.ResponseWriter, r *http.Request, op string, sheet domain.SheetName, err error) {
	h.logger.WarnContext(r.Context(), "upstream "+op+" failed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("sheet", sheet.String()),
		slog.String("error", err.Error()),
	)

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.errorHandler.HandleError(w, r, err)
	case apierrors.TypeOf(err) == apierrors.ErrTypeValidation:
		h.errorHandler.HandleError(w, r, err)
	default:
		h.errorHandler.HandleError(w, r, apierrors.UpstreamError(err))
	}
}
