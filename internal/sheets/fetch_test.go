package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	apperrors "fennixdash/internal/errors"
	"fennixdash/internal/shared/testutil"
	"fennixdash/pkg/contracts/domain"
)

func TestFetchSheet_UpstreamFailureYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	logger, logs := testutil.NewTestLogger(t)
	c, err := NewAppsScriptClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	rows := FetchSheet(context.Background(), c, domain.SheetVentas, logger)

	require.NotNil(t, rows)
	assert.Len(t, rows, 0)
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "sheet read failed")
	testutil.AssertLogAttr(t, logs, "outcome", string(OutcomeStatus))
}

func TestFetchSheet_EveryFailureYieldsEmpty(t *testing.T) {
	fake := testutil.NewFakeAppsScript(t)
	fake.SetBody(domain.SheetVentas, `{"message":"quota"}`)
	fake.SetBody(domain.SheetTarjetas, `not json`)
	fake.Fail(domain.SheetCostosFijos, http.StatusNotFound)

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		baseURL string
		ctx     context.Context
		sheet   domain.SheetName
		outcome Outcome
	}{
		{"object without rows", fake.URL(), context.Background(), domain.SheetVentas, OutcomeShape},
		{"non json", fake.URL(), context.Background(), domain.SheetTarjetas, OutcomeShape},
		{"status 404", fake.URL(), context.Background(), domain.SheetCostosFijos, OutcomeStatus},
		{"connection refused", closedURL, context.Background(), domain.SheetVentas, OutcomeTransport},
		{"cancelled", fake.URL(), cancelled, domain.SheetVentas, OutcomeCancelled},
		{"unknown sheet", fake.URL(), context.Background(), domain.SheetName("Bodega"), OutcomeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			c, err := NewAppsScriptClient(ClientConfig{BaseURL: tt.baseURL, Timeout: 2 * time.Second})
			require.NoError(t, err)

			rows, notice := NewFetcher(c, logger, nil).FetchWithNotice(tt.ctx, tt.sheet)

			require.NotNil(t, rows)
			assert.Empty(t, rows)
			assert.True(t, notice.Degraded())
			assert.Equal(t, tt.sheet, notice.Sheet)
			assert.Equal(t, noticeMessage(tt.outcome), notice.Message)
		})
	}
}

func TestFetcher_Success(t *testing.T) {
	fake := testutil.NewFakeAppsScript(t)
	fake.SetRows(domain.SheetVentas, testutil.SalesRows())

	logger, logs := testutil.NewTestLogger(t)
	c, err := NewAppsScriptClient(ClientConfig{BaseURL: fake.URL()})
	require.NoError(t, err)

	rows, notice := NewFetcher(c, logger, nil).FetchWithNotice(context.Background(), domain.SheetVentas)
	assert.Len(t, rows, 4)
	assert.False(t, notice.Degraded())
	assert.Equal(t, 4, notice.Rows)
	assert.Empty(t, logs.GetRecordsByLevel(slog.LevelWarn))
}

type stubSource struct {
	rows []domain.Row
	err  error
}

func (s stubSource) Rows(context.Context, domain.SheetName) ([]domain.Row, error) {
	return s.rows, s.err
}

func (s stubSource) Append(context.Context, domain.SheetName, domain.Row) (map[string]any, error) {
	return nil, s.err
}

func TestFetcher_NilRowsBecomeEmpty(t *testing.T) {
	rows := NewFetcher(stubSource{}, nil, nil).Fetch(context.Background(), domain.SheetVentas)
	require.NotNil(t, rows)
	assert.Empty(t, rows)

	rows = NewFetcher(stubSource{rows: []domain.Row{{"a": 1}}, err: errors.New("partial")}, nil, nil).
		Fetch(context.Background(), domain.SheetVentas)
	assert.Empty(t, rows, "rows that came with an error are discarded")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeOK},
		{"status", apperrors.NewNetworkError("x", &StatusError{Code: 500}), OutcomeStatus},
		{"shape", apperrors.NewParsingError("x", fmt.Errorf("%w: bad", ErrUnexpectedShape)), OutcomeShape},
		{"parsing without sentinel", apperrors.NewParsingError("x", errors.New("eof")), OutcomeShape},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), OutcomeCancelled},
		{"validation", apperrors.NewAppValidationError("unknown sheet"), OutcomeInvalid},
		{"other", errors.New("dial tcp: refused"), OutcomeTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Code: 503, Body: "  down \n"}
	assert.Equal(t, "upstream status 503: down", err.Error())
	assert.Equal(t, "upstream status 500", (&StatusError{Code: 500}).Error())
	assert.ErrorIs(t, fmt.Errorf("wrap: %w", err), ErrUpstreamStatus)
}

func TestFetcher_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	metrics, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ok := NewFetcher(stubSource{rows: []domain.Row{{"a": 1}, {"a": 2}}}, nil, metrics)
	bad := NewFetcher(stubSource{err: &StatusError{Code: 500}}, nil, metrics)

	ok.Fetch(context.Background(), domain.SheetVentas)
	ok.Fetch(context.Background(), domain.SheetVentas)
	bad.Fetch(context.Background(), domain.SheetVentas)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(2), counterValue(t, rm, "sheet_fetch_total", "outcome", string(OutcomeOK)))
	assert.Equal(t, int64(1), counterValue(t, rm, "sheet_fetch_total", "outcome", string(OutcomeStatus)))
	assert.Equal(t, int64(4), counterValue(t, rm, "sheet_rows_fetched_total", "sheet", "Ventas"))
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				if v, found := dp.Attributes.Value(attribute.Key(key)); found && v.AsString() == value {
					total += dp.Value
				}
			}
			return total
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}
