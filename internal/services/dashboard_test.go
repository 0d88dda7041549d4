package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fennixdash/internal/sheets"
	"fennixdash/internal/shared/testutil"
	"fennixdash/pkg/contracts/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func newFakeService(t *testing.T, fake *testutil.FakeAppsScript) *DashboardService {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	client, err := sheets.NewAppsScriptClient(
		sheets.ClientConfig{BaseURL: fake.URL(), Timeout: 2 * time.Second},
		sheets.WithLogger(logger),
	)
	require.NoError(t, err)
	return NewDashboardService(sheets.NewFetcher(client, logger, nil), DefaultDashboardOptions(), logger)
}

func seededFake(t *testing.T) *testutil.FakeAppsScript {
	t.Helper()
	fake := testutil.NewFakeAppsScript(t)
	fake.SetRows(domain.SheetVentas, testutil.SalesRows())
	fake.SetRows(domain.SheetCampanasAds, testutil.CampaignRows())
	fake.SetRows(domain.SheetTarjetas, testutil.CardRows())
	fake.SetRows(domain.SheetMovimientosTarjeta, testutil.CardMovementRows())
	return fake
}

func kpiValue(t *testing.T, v *domain.DashboardView, key string) float64 {
	t.Helper()
	k, ok := v.Kpi(key)
	require.True(t, ok, "kpi %q missing", key)
	return k.Value
}

var ignoreShare = cmpopts.IgnoreFields(domain.SeriesPoint{}, "Share")

func TestDashboardService_Overview(t *testing.T) {
	svc := newFakeService(t, seededFake(t))

	view := svc.Overview(context.Background(), domain.DateRange{})

	assert.Equal(t, domain.ViewOverview, view.View)
	assert.False(t, view.Degraded())
	assert.InDelta(t, 1000000, kpiValue(t, view, "ingreso"), 0.001)
	assert.InDelta(t, 300000, kpiValue(t, view, "costo_producto"), 0.001)
	assert.InDelta(t, 20000, kpiValue(t, view, "costo_empaque"), 0.001)
	assert.InDelta(t, 45000, kpiValue(t, view, "costo_envio"), 0.001)
	assert.InDelta(t, 20000, kpiValue(t, view, "comisiones"), 0.001)
	assert.InDelta(t, 100000, kpiValue(t, view, "costo_publicidad"), 0.001)
	assert.InDelta(t, 680000, kpiValue(t, view, "utilidad_bruta"), 0.001)
	assert.InDelta(t, 515000, kpiValue(t, view, "utilidad_neta"), 0.001)
	assert.InDelta(t, 68, kpiValue(t, view, "margen_bruto"), 0.001)
	assert.InDelta(t, 51.5, kpiValue(t, view, "margen_neto"), 0.001)
	assert.InDelta(t, 10, kpiValue(t, view, "peso_publicidad"), 0.001)
	assert.InDelta(t, 10, kpiValue(t, view, "roas"), 0.001)

	ingreso, _ := view.Kpi("ingreso")
	assert.Equal(t, "$ 1.000.000", ingreso.Formatted)
	assert.Empty(t, ingreso.Warning)

	want := domain.Series{
		{Label: "2024-03-01", Total: 100000},
		{Label: "2024-03-02", Total: 200000},
		{Label: "2024-03-15", Total: 300000},
		{Label: "2024-04-01", Total: 400000},
	}
	if diff := cmp.Diff(want, view.Series["ventas_diarias"], ignoreShare); diff != "" {
		t.Errorf("ventas_diarias mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"ventas_diarias", "estructura_costos"}, view.SeriesOrder)

	require.NotNil(t, view.Table)
	records := view.Table.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "Lanzamiento Velas", records[0][1])
	assert.Equal(t, "Remarketing", records[1][1])
	assert.Equal(t, "Difusores", records[2][1])

	require.Len(t, view.Sources, 2)
	assert.Equal(t, domain.SheetVentas, view.Sources[0].Sheet)
	assert.Equal(t, 4, view.Sources[0].Rows)
	assert.Equal(t, domain.SheetCampanasAds, view.Sources[1].Sheet)
}

func TestDashboardService_Overview_DateRange(t *testing.T) {
	svc := newFakeService(t, seededFake(t))

	march := domain.DateRange{
		From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	view := svc.Overview(context.Background(), march)

	assert.InDelta(t, 600000, kpiValue(t, view, "ingreso"), 0.001)
	assert.InDelta(t, 60000, kpiValue(t, view, "costo_publicidad"), 0.001)
	assert.InDelta(t, 10, kpiValue(t, view, "roas"), 0.001)
	assert.Len(t, view.Series["ventas_diarias"], 3)
	assert.Equal(t, march, view.Range)
}

func TestDashboardService_Overview_ZeroRevenueZeroSpend(t *testing.T) {
	fake := testutil.NewFakeAppsScript(t)
	svc := newFakeService(t, fake)

	view := svc.Overview(context.Background(), domain.DateRange{})

	roas, ok := view.Kpi("roas")
	require.True(t, ok)
	assert.Equal(t, 0.0, roas.Value)
	assert.Empty(t, roas.Warning)
	margin, _ := view.Kpi("margen_bruto")
	assert.Equal(t, 0.0, margin.Value)
	assert.Empty(t, margin.Warning)
	assert.False(t, view.Degraded())
	assert.Empty(t, view.Series["ventas_diarias"])
}

func TestDashboardService_Overview_Warnings(t *testing.T) {
	fake := testutil.NewFakeAppsScript(t)
	fake.SetRows(domain.SheetVentas, []domain.Row{
		{"Fecha": "2024-05-01", "Valor_Venta": "250.000"},
	})
	svc := newFakeService(t, fake)

	view := svc.Overview(context.Background(), domain.DateRange{})

	roas, _ := view.Kpi("roas")
	assert.Equal(t, 0.0, roas.Value)
	assert.Equal(t, "Falta inversión (Ad Spend)", roas.Warning)

	margin, _ := view.Kpi("margen_bruto")
	assert.InDelta(t, 100, margin.Value, 0.001)
	assert.Equal(t, "Falta costo de producto", margin.Warning)
}

func TestDashboardService_Overview_DegradedSheet(t *testing.T) {
	fake := seededFake(t)
	fake.Fail(domain.SheetVentas, 500)
	svc := newFakeService(t, fake)

	view := svc.Overview(context.Background(), domain.DateRange{})

	assert.True(t, view.Degraded())
	assert.Equal(t, 0.0, kpiValue(t, view, "ingreso"))
	assert.Equal(t, 0.0, kpiValue(t, view, "roas"))
	require.Len(t, view.Sources, 2)
	assert.NotEmpty(t, view.Sources[0].Message)
	assert.Equal(t, 0, view.Sources[0].Rows)
	assert.Empty(t, view.Sources[1].Message)
	assert.Len(t, view.Table.Rows, 3)
}

func TestDashboardService_Sales(t *testing.T) {
	svc := newFakeService(t, seededFake(t))

	view := svc.Sales(context.Background(), domain.DateRange{})

	assert.Equal(t, 4.0, kpiValue(t, view, "ventas"))
	assert.InDelta(t, 1000000, kpiValue(t, view, "ingreso"), 0.001)
	assert.Equal(t, 7.0, kpiValue(t, view, "unidades"))
	assert.InDelta(t, 250000, kpiValue(t, view, "ticket_promedio"), 0.001)

	tests := []struct {
		series string
		want   domain.Series
	}{
		{"metodos_pago", domain.Series{
			{Label: "Efectivo", Total: 2},
			{Label: "Tarjeta", Total: 1},
			{Label: "Sin dato", Total: 1},
		}},
		{"ingreso_por_metodo", domain.Series{
			{Label: "Efectivo", Total: 400000},
			{Label: "Sin dato", Total: 400000},
			{Label: "Tarjeta", Total: 200000},
		}},
		{"ciudades", domain.Series{
			{Label: "Cali", Total: 2},
			{Label: "Bogotá", Total: 1},
			{Label: "Medellín", Total: 1},
		}},
		{"productos", domain.Series{
			{Label: "Vela Lavanda", Total: 3},
			{Label: "Difusor", Total: 3},
			{Label: "Jabón Avena", Total: 1},
		}},
		{"ingreso_mensual", domain.Series{
			{Label: "2024-03", Total: 600000},
			{Label: "2024-04", Total: 400000},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.series, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, view.Series[tt.series], ignoreShare); diff != "" {
				t.Errorf("%s mismatch (-want +got):\n%s", tt.series, diff)
			}
		})
	}

	assert.InDelta(t, 50, view.Series["metodos_pago"][0].Share, 0.001)

	require.NotNil(t, view.Table)
	assert.Equal(t, []string{"Fecha", "ID_Venta", "Producto", "Cantidad", "Valor_Venta", "Metodo_Pago"}, view.Table.Columns)
	records := view.Table.Records()
	require.Len(t, records, 4)
	assert.Equal(t, "V-001", records[0][1])
	assert.Equal(t, "", records[2][3])
}

func TestDashboardService_Campaigns(t *testing.T) {
	svc := newFakeService(t, seededFake(t))

	view := svc.Campaigns(context.Background(), domain.DateRange{})

	assert.InDelta(t, 1000000, kpiValue(t, view, "inversion_total"), 0.001)
	assert.InDelta(t, 45000, kpiValue(t, view, "presupuesto_diario"), 0.001)
	assert.InDelta(t, 50000, kpiValue(t, view, "impresiones"), 0.001)
	assert.InDelta(t, 500, kpiValue(t, view, "clics"), 0.001)
	assert.InDelta(t, 1, kpiValue(t, view, "ctr"), 0.001)
	assert.InDelta(t, 20, kpiValue(t, view, "conversiones"), 0.001)
	assert.InDelta(t, 2400000, kpiValue(t, view, "ventas_registradas"), 0.001)
	assert.InDelta(t, 2, kpiValue(t, view, "roas_plataforma"), 0.001)

	registered, ok := view.Kpi("ventas_registradas")
	require.True(t, ok)
	assert.False(t, registered.Currency)
	assert.Equal(t, "2.400.000", registered.Formatted)

	byPlatform := view.Series["inversion_por_plataforma"]
	require.Len(t, byPlatform, 2)
	assert.Equal(t, "Meta", byPlatform[0].Label)
	assert.InDelta(t, 800000, byPlatform[0].Total, 0.001)
	assert.InDelta(t, 80, byPlatform[0].Share, 0.001)

	require.NotNil(t, view.Table)
	assert.Len(t, view.Table.Columns, 10)
	records := view.Table.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "Lanzamiento Velas", records[0][1])
	assert.Equal(t, "2.5", records[0][7])
	assert.Equal(t, "Difusores", records[2][1])
}

func TestDashboardService_Campaigns_TopN(t *testing.T) {
	fake := seededFake(t)
	logger, _ := testutil.NewTestLogger(t)
	client, err := sheets.NewAppsScriptClient(sheets.ClientConfig{BaseURL: fake.URL()}, sheets.WithLogger(logger))
	require.NoError(t, err)
	svc := NewDashboardService(sheets.NewFetcher(client, logger, nil), DashboardOptions{TopN: 1}, logger)

	view := svc.Campaigns(context.Background(), domain.DateRange{})

	require.Len(t, view.Table.Rows, 1)
	assert.Equal(t, "Top 1 campañas por inversión", view.Table.Title)
}

func TestDashboardService_Cards(t *testing.T) {
	svc := newFakeService(t, seededFake(t))

	view := svc.Cards(context.Background(), domain.DateRange{})

	assert.InDelta(t, 8000000, kpiValue(t, view, "limite_total"), 0.001)
	assert.InDelta(t, 2000000, kpiValue(t, view, "saldo_utilizado"), 0.001)
	assert.InDelta(t, 6000000, kpiValue(t, view, "cupo_disponible"), 0.001)
	assert.InDelta(t, 540000, kpiValue(t, view, "gastos_mes"), 0.001)
	assert.InDelta(t, 25, kpiValue(t, view, "porcentaje_utilizado"), 0.001)

	saldo, _ := view.Kpi("saldo_utilizado")
	assert.Equal(t, domain.ColorRed, saldo.Color)

	availability := view.Series["disponibilidad_cupo"]
	assert.Equal(t, []string{"Cupo Disponible", "Saldo Utilizado"}, availability.Labels())
	assert.InDelta(t, 75, availability[0].Share, 0.001)

	want := domain.Series{
		{Label: "Inventario", Total: 350000},
		{Label: "Publicidad", Total: 150000},
		{Label: "Sin Categoría", Total: 40000},
	}
	if diff := cmp.Diff(want, view.Series["gastos_por_categoria"], ignoreShare); diff != "" {
		t.Errorf("gastos_por_categoria mismatch (-want +got):\n%s", diff)
	}

	records := view.Table.Records()
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Visa Oro", "5000000", "1500000", "3500000", "30"}, records[0])
	assert.Equal(t, "16.67", records[1][4])
}

func TestDashboardService_Cards_NoLimit(t *testing.T) {
	fake := testutil.NewFakeAppsScript(t)
	svc := newFakeService(t, fake)

	view := svc.Cards(context.Background(), domain.DateRange{})

	assert.Empty(t, view.Series["disponibilidad_cupo"])
	assert.Equal(t, 0.0, kpiValue(t, view, "porcentaje_utilizado"))
	assert.Contains(t, view.SeriesOrder, "disponibilidad_cupo")
}

func TestDashboardService_View(t *testing.T) {
	svc := newFakeService(t, seededFake(t))

	for _, name := range domain.AllViews() {
		t.Run(string(name), func(t *testing.T) {
			view, err := svc.View(context.Background(), name, domain.DateRange{})
			require.NoError(t, err)
			assert.Equal(t, name, view.View)
			assert.NotEmpty(t, view.Kpis)
			assert.NotEmpty(t, view.Sources)
		})
	}

	_, err := svc.View(context.Background(), "inventory", domain.DateRange{})
	assert.ErrorIs(t, err, ErrUnknownView)
}

// countingFetcher records concurrency and serves fixed rows.
type countingFetcher struct {
	mu       sync.Mutex
	rows     map[domain.SheetName][]domain.Row
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *countingFetcher) FetchWithNotice(ctx context.Context, sheet domain.SheetName) ([]domain.Row, domain.SourceNotice) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return []domain.Row{}, domain.SourceNotice{Sheet: sheet, Message: "lectura cancelada"}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.rows[sheet]
	return rows, domain.SourceNotice{Sheet: sheet, Rows: len(rows)}
}

func TestDashboardService_LoadsSheetsConcurrently(t *testing.T) {
	fetcher := &countingFetcher{
		rows: map[domain.SheetName][]domain.Row{
			domain.SheetTarjetas:           testutil.CardRows(),
			domain.SheetMovimientosTarjeta: testutil.CardMovementRows(),
		},
		delay: 50 * time.Millisecond,
	}
	logger, _ := testutil.NewTestLogger(t)
	svc := NewDashboardService(fetcher, DashboardOptions{}, logger)

	view := svc.Cards(context.Background(), domain.DateRange{})

	assert.Equal(t, int32(2), fetcher.peak.Load())
	assert.InDelta(t, 540000, kpiValue(t, view, "gastos_mes"), 0.001)
	assert.Equal(t, domain.SheetTarjetas, view.Sources[0].Sheet)
	assert.Equal(t, domain.SheetMovimientosTarjeta, view.Sources[1].Sheet)
}

func TestDashboardService_CancelledContext(t *testing.T) {
	fetcher := &countingFetcher{delay: time.Minute}
	logger, logs := testutil.NewTestLogger(t)
	svc := NewDashboardService(fetcher, DashboardOptions{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	view := svc.Overview(ctx, domain.DateRange{})

	assert.True(t, view.Degraded())
	assert.Equal(t, 0.0, kpiValue(t, view, "ingreso"))
	assert.True(t, logs.ContainsMessage("view built"))
}

type recordingObserver struct {
	views    []string
	degraded []bool
}

func (o *recordingObserver) ObserveView(_ context.Context, view string, _ time.Duration, degraded bool) {
	o.views = append(o.views, view)
	o.degraded = append(o.degraded, degraded)
}

func TestDashboardService_Observer(t *testing.T) {
	fake := seededFake(t)
	fake.Fail(domain.SheetTarjetas, 503)
	svc := newFakeService(t, fake)
	obs := &recordingObserver{}
	svc.SetObserver(obs)

	svc.Sales(context.Background(), domain.DateRange{})
	svc.Cards(context.Background(), domain.DateRange{})

	assert.Equal(t, []string{"sales", "cards"}, obs.views)
	assert.Equal(t, []bool{false, true}, obs.degraded)
}

func TestNewDashboardService_Defaults(t *testing.T) {
	svc := NewDashboardService(&countingFetcher{}, DashboardOptions{TopN: -3}, nil)

	assert.Equal(t, 10, svc.opts.TopN)
	assert.Equal(t, "Sin dato", svc.opts.FallbackLabel)
	assert.Equal(t, "Sin Categoría", svc.opts.CardFallback)
	assert.Equal(t, "es-CO", svc.opts.Locale)
	assert.NotNil(t, svc.Formatter())
	assert.False(t, errors.Is(ErrUnknownView, ErrBackendNotConfigured))
}
