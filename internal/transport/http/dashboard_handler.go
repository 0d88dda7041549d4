package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "fennixdash/internal/errors"
	"fennixdash/internal/exporter"
	mw "fennixdash/internal/middleware"
	"fennixdash/internal/services"
	"fennixdash/pkg/contracts/domain"
)

const isoDate = "2006-01-02"

type viewRequestKey struct{}

// viewRequest is what ViewCtx resolves from the URL.
type viewRequest struct {
	View  domain.ViewName
	Range domain.DateRange
}

// DashboardHandler serves the KPI views and their downloads.
type DashboardHandler struct {
	service      DashboardServiceInterface
	exporter     ViewExporter
	validator    *mw.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	now          func() time.Time
}

// NewDashboardHandler creates the dashboard handler.
func NewDashboardHandler(service DashboardServiceInterface, exp ViewExporter, validator *mw.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		exporter:     exp,
		validator:    validator,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
		now:          time.Now,
	}
}

// Routes returns the dashboard routes, mounted under /api/dashboard.
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListViews)
	r.Route("/{view}", func(r chi.Router) {
		r.Use(h.ViewCtx)
		r.With(render.SetContentType(render.ContentTypeJSON)).Get("/", h.GetView)
		r.Get("/export", h.Export)
	})

	r.MethodNotAllowed(h.errorHandler.MethodNotAllowed)
	return r
}

// ViewCtx validates the view name and the from/to query and stores both in
// the request context.
func (h *DashboardHandler) ViewCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		view := domain.ViewName(chi.URLParam(r, "view"))
		if !view.Valid() {
			h.errorHandler.HandleError(w, r, apierrors.NotFoundError(fmt.Sprintf("view %q", view)))
			return
		}

		q := domain.DateRangeQuery{
			From: r.URL.Query().Get("from"),
			To:   r.URL.Query().Get("to"),
		}
		if err := h.validator.ValidateStruct(q); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		rng, err := parseRange(q)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), viewRequestKey{}, viewRequest{View: view, Range: rng})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// parseRange turns validated query strings into a range. Both bounds are
// calendar days in UTC, matching how sheet dates are read.
func parseRange(q domain.DateRangeQuery) (domain.DateRange, error) {
	var rng domain.DateRange
	var err error
	if q.From != "" {
		if rng.From, err = time.ParseInLocation(isoDate, q.From, time.UTC); err != nil {
			return rng, apierrors.ErrValidation("from", err.Error())
		}
	}
	if q.To != "" {
		if rng.To, err = time.ParseInLocation(isoDate, q.To, time.UTC); err != nil {
			return rng, apierrors.ErrValidation("to", err.Error())
		}
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
		return rng, apierrors.ErrValidation("to", "to must not be before from")
	}
	return rng, nil
}

func viewRequestFrom(ctx context.Context) viewRequest {
	req, _ := ctx.Value(viewRequestKey{}).(viewRequest)
	return req
}

// ListViews handles GET /api/dashboard
func (h *DashboardHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	views := domain.AllViews()
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   views,
		"count":  len(views),
	})
}

// GetView handles GET /api/dashboard/{view}
func (h *DashboardHandler) GetView(w http.ResponseWriter, r *http.Request) {
	view, ok := h.build(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   view,
	})
}

// Export handles GET /api/dashboard/{view}/export?format=xlsx|csv. The file is
// rendered into memory first so a failure can still answer with a problem.
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := exporter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("format", err.Error()))
		return
	}

	view, ok := h.build(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Export(&buf, view, format); err != nil {
		h.logger.ErrorContext(r.Context(), "export failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("view", string(view.View)),
			slog.String("format", string(format)),
			slog.String("error", err.Error()),
		)
		h.errorHandler.HandleError(w, r, apierrors.ExportFailed(string(format), err))
		return
	}
	mw.BusinessMetricsFromContext(r.Context()).RecordExport(r.Context(), string(view.View), string(format))

	name := exporter.Filename(view.View, format, h.now())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *DashboardHandler) build(w http.ResponseWriter, r *http.Request) (*domain.DashboardView, bool) {
	ctx := r.Context()
	req := viewRequestFrom(ctx)

	view, err := h.service.View(ctx, req.View, req.Range)
	if err != nil {
		if errors.Is(err, services.ErrUnknownView) {
			err = apierrors.NotFoundError(fmt.Sprintf("view %q", req.View))
		}
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}

	if view.Degraded() {
		h.logger.WarnContext(ctx, "view served with unreadable sheets",
			slog.String("request_id", middleware.GetReqID(ctx)),
			slog.String("view", string(req.View)),
		)
	}
	return view, true
}
