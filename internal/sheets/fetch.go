package sheets

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "fennixdash/internal/errors"
	"fennixdash/pkg/contracts/domain"
)

const tracerName = "fennixdash/internal/sheets"

// Fetcher is the lenient read path: every failure becomes an empty slice, a
// log line and a metric, never an error.
type Fetcher struct {
	src     Source
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// NewFetcher wraps src. metrics may be nil.
func NewFetcher(src Source, logger *slog.Logger, metrics *Metrics) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		src:     src,
		logger:  logger.With(slog.String("component", "sheet_fetcher")),
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// Source returns the wrapped backend.
func (f *Fetcher) Source() Source { return f.src }

// Fetch returns the rows of sheet, or an empty non-nil slice on any failure.
func (f *Fetcher) Fetch(ctx context.Context, sheet domain.SheetName) []domain.Row {
	rows, _ := f.FetchWithNotice(ctx, sheet)
	return rows
}

// FetchWithNotice is Fetch plus a notice describing how the read went, for
// views that report degraded sources.
func (f *Fetcher) FetchWithNotice(ctx context.Context, sheet domain.SheetName) ([]domain.Row, domain.SourceNotice) {
	ctx, span := f.tracer.Start(ctx, "sheets.fetch",
		trace.WithAttributes(attribute.String("sheet", sheet.String())))
	defer span.End()

	start := time.Now()
	rows, err := f.src.Rows(ctx, sheet)
	elapsed := time.Since(start)

	outcome := Classify(err)
	if err != nil || rows == nil {
		rows = []domain.Row{}
	}
	f.metrics.record(ctx, sheet.String(), outcome, elapsed, len(rows))
	span.SetAttributes(
		attribute.String("outcome", string(outcome)),
		attribute.Int("rows", len(rows)),
	)

	notice := domain.SourceNotice{Sheet: sheet, Rows: len(rows)}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(outcome))
		notice.Message = noticeMessage(outcome)

		level := slog.LevelWarn
		if outcome == OutcomeCancelled {
			level = slog.LevelDebug
		}
		f.logger.Log(ctx, level, "sheet read failed, using empty rows",
			slog.String("sheet", sheet.String()),
			slog.String("outcome", string(outcome)),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()))
		return rows, notice
	}

	f.logger.DebugContext(ctx, "sheet read",
		slog.String("sheet", sheet.String()),
		slog.Int("rows", len(rows)),
		slog.Duration("duration", elapsed))
	return rows, notice
}

// FetchSheet reads sheet from src and degrades every failure to an empty
// slice.
func FetchSheet(ctx context.Context, src Source, sheet domain.SheetName, logger *slog.Logger) []domain.Row {
	return NewFetcher(src, logger, nil).Fetch(ctx, sheet)
}

// Classify maps a Source error onto an outcome label.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	case errors.Is(err, ErrUpstreamStatus):
		return OutcomeStatus
	case errors.Is(err, ErrUnexpectedShape):
		return OutcomeShape
	case apperrors.TypeOf(err) == apperrors.ErrTypeValidation:
		return OutcomeInvalid
	case apperrors.TypeOf(err) == apperrors.ErrTypeParsing:
		return OutcomeShape
	default:
		return OutcomeTransport
	}
}

func noticeMessage(o Outcome) string {
	switch o {
	case OutcomeStatus:
		return "la hoja respondió con error"
	case OutcomeShape:
		return "respuesta inesperada de la hoja"
	case OutcomeCancelled:
		return "lectura cancelada"
	case OutcomeInvalid:
		return "hoja desconocida"
	default:
		return "no se pudo leer la hoja"
	}
}
