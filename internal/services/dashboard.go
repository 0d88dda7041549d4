package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fennixdash/internal/dataprocessing"
	"fennixdash/pkg/contracts/domain"
)

// RowFetcher is the lenient read path the views use: it never fails, it
// degrades to empty rows and reports why in the notice.
type RowFetcher interface {
	FetchWithNotice(ctx context.Context, sheet domain.SheetName) ([]domain.Row, domain.SourceNotice)
}

// ViewObserver receives one observation per built view.
type ViewObserver interface {
	ObserveView(ctx context.Context, view string, elapsed time.Duration, degraded bool)
}

// DashboardOptions tunes the view builders.
type DashboardOptions struct {
	FallbackLabel string
	CardFallback  string
	TopN          int
	Locale        string
}

// DefaultDashboardOptions mirrors the defaults of the Dashboard config section.
func DefaultDashboardOptions() DashboardOptions {
	return DashboardOptions{
		FallbackLabel: dataprocessing.FallbackLabel,
		CardFallback:  "Sin Categoría",
		TopN:          10,
		Locale:        "es-CO",
	}
}

// maxParallelSheets bounds concurrent upstream reads per view.
const maxParallelSheets = 4

// DashboardService builds the KPI pages from the spreadsheet.
type DashboardService struct {
	fetcher   RowFetcher
	formatter *dataprocessing.Formatter
	opts      DashboardOptions
	observer  ViewObserver
	logger    *slog.Logger
	now       func() time.Time
}

// NewDashboardService creates a dashboard service. Zero option fields fall
// back to DefaultDashboardOptions.
func NewDashboardService(fetcher RowFetcher, opts DashboardOptions, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultDashboardOptions()
	if opts.FallbackLabel == "" {
		opts.FallbackLabel = def.FallbackLabel
	}
	if opts.CardFallback == "" {
		opts.CardFallback = def.CardFallback
	}
	if opts.TopN <= 0 {
		opts.TopN = def.TopN
	}
	if opts.Locale == "" {
		opts.Locale = def.Locale
	}

	logger.Info("DashboardService initialized",
		slog.Int("top_n", opts.TopN),
		slog.String("locale", opts.Locale))

	return &DashboardService{
		fetcher:   fetcher,
		formatter: dataprocessing.NewFormatterFor(opts.Locale),
		opts:      opts,
		logger:    logger.With(slog.String("component", "dashboard")),
		now:       time.Now,
	}
}

// SetObserver attaches a metrics sink. Nil detaches it.
func (s *DashboardService) SetObserver(o ViewObserver) {
	s.observer = o
}

// Formatter exposes the locale formatter so exports render amounts the same way.
func (s *DashboardService) Formatter() *dataprocessing.Formatter {
	return s.formatter
}

// View builds the named page. The only error is an unknown view name;
// upstream failures show up as degraded source notices.
func (s *DashboardService) View(ctx context.Context, name domain.ViewName, r domain.DateRange) (*domain.DashboardView, error) {
	switch name {
	case domain.ViewOverview:
		return s.Overview(ctx, r), nil
	case domain.ViewSales:
		return s.Sales(ctx, r), nil
	case domain.ViewCampaigns:
		return s.Campaigns(ctx, r), nil
	case domain.ViewCards:
		return s.Cards(ctx, r), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
}

// Overview is the profitability page: revenue, the five cost lines, gross and
// net profit, margins and ROAS, plus daily sales and the top ads.
func (s *DashboardService) Overview(ctx context.Context, r domain.DateRange) *domain.DashboardView {
	start := s.now()
	loaded := s.load(ctx, domain.SheetVentas, domain.SheetCampanasAds)
	sales := dataprocessing.FilterByDate(loaded.rows[domain.SheetVentas], domain.ColFecha, r)
	ads := loaded.rows[domain.SheetCampanasAds]

	ingreso := dataprocessing.SumByKey(sales, domain.ColValorVenta)
	producto := dataprocessing.SumByKey(sales, domain.ColCostoProducto)
	empaque := dataprocessing.SumByKey(sales, domain.ColCostoEmpaque)
	envio := dataprocessing.SumByKey(sales, domain.ColCostoEnvio)
	comisiones := dataprocessing.SumByKey(sales, domain.ColComisionesPlataforma)
	publicidad := dataprocessing.SumByKey(sales, domain.ColCostoPublicidad)

	bruta := ingreso - producto - empaque
	neta := ingreso - producto - empaque - envio - comisiones - publicidad
	roas := dataprocessing.Ratio(ingreso, publicidad)

	var marginWarning, roasWarning string
	if ingreso > 0 && producto == 0 {
		marginWarning = "Falta costo de producto"
	}
	if ingreso > 0 && roas == 0 {
		roasWarning = "Falta inversión (Ad Spend)"
	}

	view := s.newView(domain.ViewOverview, r)
	view.Kpis = s.build(
		dataprocessing.KpiSpec{Key: "ingreso", Label: "Ingreso total (rango)", Value: ingreso, Currency: true, Color: domain.ColorGreen},
		dataprocessing.KpiSpec{Key: "costo_producto", Label: "Costo producto", Value: producto, Currency: true, Color: domain.ColorOrange},
		dataprocessing.KpiSpec{Key: "costo_empaque", Label: "Costo empaque", Value: empaque, Currency: true, Color: domain.ColorOrange},
		dataprocessing.KpiSpec{Key: "costo_envio", Label: "Costo envío", Value: envio, Currency: true, Color: domain.ColorOrange},
		dataprocessing.KpiSpec{Key: "comisiones", Label: "Comisiones plataforma", Value: comisiones, Currency: true, Color: domain.ColorOrange},
		dataprocessing.KpiSpec{Key: "costo_publicidad", Label: "Costo publicidad", Value: publicidad, Currency: true, Color: domain.ColorOrange},
		dataprocessing.KpiSpec{Key: "utilidad_bruta", Label: "Utilidad bruta total", Value: bruta, Currency: true, Color: profitColor(bruta)},
		dataprocessing.KpiSpec{Key: "utilidad_neta", Label: "Utilidad neta final", Value: neta, Currency: true, Color: profitColor(neta)},
		dataprocessing.KpiSpec{Key: "margen_bruto", Label: "Margen bruto", Value: dataprocessing.Percent(bruta, ingreso), Unit: "%", Max: 100, Warning: marginWarning},
		dataprocessing.KpiSpec{Key: "margen_neto", Label: "Margen neto", Value: dataprocessing.Percent(neta, ingreso), Unit: "%", Max: 100},
		dataprocessing.KpiSpec{Key: "peso_publicidad", Label: "Peso publicidad", Value: dataprocessing.Percent(publicidad, ingreso), Unit: "%", Max: 100},
		dataprocessing.KpiSpec{Key: "roas", Label: "ROAS", Value: roas, Unit: "x", Max: 5, Warning: roasWarning},
	)

	view.AddSeries("ventas_diarias", dataprocessing.SumByPeriod(sales, domain.ColFecha, domain.ColValorVenta, dataprocessing.PeriodDay))
	view.AddSeries("estructura_costos", dataprocessing.Share(domain.Series{
		{Label: "Costo producto", Total: producto},
		{Label: "Costo empaque", Total: empaque},
		{Label: "Costo envío", Total: envio},
		{Label: "Comisiones plataforma", Total: comisiones},
		{Label: "Costo publicidad", Total: publicidad},
		{Label: "Utilidad neta", Total: max(neta, 0)},
	}))

	view.Table = &domain.Table{
		Title: fmt.Sprintf("Top %d anuncios por ventas", s.opts.TopN),
		Columns: []string{
			domain.ColPlataformaAds, domain.ColNombreCampana, domain.ColVentasRegistradas,
			domain.ColInversion, domain.ColROASPlataforma,
		},
		Rows: dataprocessing.TopRowsBy(ads, domain.ColVentasRegistradas, s.opts.TopN),
	}

	return s.finish(ctx, view, loaded, start)
}

// Sales is the Ventas ledger page.
func (s *DashboardService) Sales(ctx context.Context, r domain.DateRange) *domain.DashboardView {
	start := s.now()
	loaded := s.load(ctx, domain.SheetVentas)
	sales := dataprocessing.FilterByDate(loaded.rows[domain.SheetVentas], domain.ColFecha, r)

	count := float64(len(sales))
	ingreso := dataprocessing.SumByKey(sales, domain.ColValorVenta)
	unidades := 0.0
	units := dataprocessing.QuantityOf(domain.ColCantidad)
	for _, row := range sales {
		unidades += units(row)
	}

	view := s.newView(domain.ViewSales, r)
	view.Kpis = s.build(
		dataprocessing.KpiSpec{Key: "ventas", Label: "Número de ventas", Value: count, Color: domain.ColorGreen},
		dataprocessing.KpiSpec{Key: "ingreso", Label: "Ingreso total", Value: ingreso, Currency: true, Color: domain.ColorGreen},
		dataprocessing.KpiSpec{Key: "unidades", Label: "Unidades vendidas", Value: unidades, Unit: "und", Color: domain.ColorGreen},
		dataprocessing.KpiSpec{Key: "ticket_promedio", Label: "Ticket promedio", Value: dataprocessing.Ratio(ingreso, count), Currency: true, Color: domain.ColorYellow},
	)

	payment := dataprocessing.GroupSpec{Field: domain.ColMetodoPago, Fallback: s.opts.FallbackLabel}
	view.AddSeries("metodos_pago", dataprocessing.Share(dataprocessing.GroupBy(sales, payment, dataprocessing.CountRows)))

	cities := dataprocessing.GroupSpec{Field: domain.ColCiudad, Fallback: s.opts.FallbackLabel}
	view.AddSeries("ciudades", dataprocessing.TopN(dataprocessing.GroupBy(sales, cities, dataprocessing.CountRows), s.opts.TopN))

	products := dataprocessing.GroupSpec{Field: domain.ColProducto, Fallback: s.opts.FallbackLabel}
	view.AddSeries("productos", dataprocessing.TopN(dataprocessing.GroupBy(sales, products, units), s.opts.TopN))

	payment.Order = dataprocessing.OrderTotalDesc
	view.AddSeries("ingreso_por_metodo", dataprocessing.GroupBy(sales, payment, dataprocessing.SumOf(domain.ColValorVenta)))
	view.AddSeries("ingreso_mensual", dataprocessing.SumByPeriod(sales, domain.ColFecha, domain.ColValorVenta, dataprocessing.PeriodMonth))

	view.Table = &domain.Table{
		Title: "Ventas",
		Columns: []string{
			domain.ColFecha, domain.ColIDVenta, domain.ColProducto,
			domain.ColCantidad, domain.ColValorVenta, domain.ColMetodoPago,
		},
		Rows: sales,
	}

	return s.finish(ctx, view, loaded, start)
}

// Campaigns is the ads performance page. Campaign rows carry cumulative
// metrics and are not narrowed by the date range.
func (s *DashboardService) Campaigns(ctx context.Context, r domain.DateRange) *domain.DashboardView {
	start := s.now()
	loaded := s.load(ctx, domain.SheetCampanasAds)
	ads := loaded.rows[domain.SheetCampanasAds]

	inversion := dataprocessing.SumByKey(ads, domain.ColInversion)
	impresiones := dataprocessing.SumByKey(ads, domain.ColImpresiones)
	clics := dataprocessing.SumByKey(ads, domain.ColClics)

	view := s.newView(domain.ViewCampaigns, r)
	view.Kpis = s.build(
		dataprocessing.KpiSpec{Key: "inversion_total", Label: "Inversión total (ads)", Value: inversion, Currency: true, Color: domain.ColorOrange},
		dataprocessing.KpiSpec{Key: "presupuesto_diario", Label: "Presupuesto diario total", Value: dataprocessing.SumByKey(ads, domain.ColPresupuestoDiario), Currency: true, Color: domain.ColorYellow},
		dataprocessing.KpiSpec{Key: "impresiones", Label: "Impresiones", Value: impresiones, Unit: "imp", Color: domain.ColorGreen},
		dataprocessing.KpiSpec{Key: "clics", Label: "Clics", Value: clics, Unit: "clics", Color: domain.ColorGreen},
		dataprocessing.KpiSpec{Key: "ctr", Label: "CTR global (%)", Value: dataprocessing.Percent(clics, impresiones), Unit: "%", Max: 10},
		dataprocessing.KpiSpec{Key: "conversiones", Label: "Conversiones reportadas", Value: dataprocessing.SumByKey(ads, domain.ColConversiones), Unit: "conv", Color: domain.ColorGreen},
		dataprocessing.KpiSpec{Key: "ventas_registradas", Label: "Ventas registradas (ads)", Value: dataprocessing.SumByKey(ads, domain.ColVentasRegistradas), Color: domain.ColorGreen},
		dataprocessing.KpiSpec{Key: "roas_plataforma", Label: "ROAS plataforma medio", Value: dataprocessing.Average(ads, domain.ColROASPlataforma), Unit: "x", Max: 5},
	)

	platforms := dataprocessing.GroupSpec{Field: domain.ColPlataformaAds, Fallback: s.opts.FallbackLabel, Order: dataprocessing.OrderTotalDesc}
	view.AddSeries("inversion_por_plataforma", dataprocessing.Share(dataprocessing.GroupBy(ads, platforms, dataprocessing.SumOf(domain.ColInversion))))

	view.Table = &domain.Table{
		Title: fmt.Sprintf("Top %d campañas por inversión", s.opts.TopN),
		Columns: []string{
			domain.ColPlataformaAds, domain.ColNombreCampana, domain.ColEstadoCampana,
			domain.ColPresupuestoDiario, domain.ColInversion, domain.ColImpresiones,
			domain.ColClics, domain.ColCTR, domain.ColConversiones, domain.ColROASPlataforma,
		},
		Rows: withCTR(dataprocessing.TopRowsBy(ads, domain.ColInversion, s.opts.TopN)),
	}

	return s.finish(ctx, view, loaded, start)
}

// Cards is the credit card page: limits, balances and this period's spending.
func (s *DashboardService) Cards(ctx context.Context, r domain.DateRange) *domain.DashboardView {
	start := s.now()
	loaded := s.load(ctx, domain.SheetTarjetas, domain.SheetMovimientosTarjeta)
	cards := loaded.rows[domain.SheetTarjetas]
	movements := dataprocessing.FilterByDate(loaded.rows[domain.SheetMovimientosTarjeta], domain.ColFecha, r)

	limite := dataprocessing.SumByKey(cards, domain.ColLimite)
	saldo := dataprocessing.SumByKey(cards, domain.ColSaldoActual)
	cupo := limite - saldo

	view := s.newView(domain.ViewCards, r)
	view.Kpis = s.build(
		dataprocessing.KpiSpec{Key: "limite_total", Label: "Límite de crédito total", Value: limite, Currency: true, Color: domain.ColorYellow},
		dataprocessing.KpiSpec{Key: "saldo_utilizado", Label: "Saldo total utilizado", Value: saldo, Currency: true, Color: domain.ColorRed},
		dataprocessing.KpiSpec{Key: "cupo_disponible", Label: "Cupo disponible total", Value: cupo, Currency: true, Color: domain.ColorGreen},
		dataprocessing.KpiSpec{Key: "gastos_mes", Label: "Gastos del mes", Value: dataprocessing.SumByKey(movements, domain.ColMonto), Currency: true, Color: domain.ColorOrange},
		dataprocessing.KpiSpec{Key: "porcentaje_utilizado", Label: "% utilizado", Value: dataprocessing.Percent(saldo, limite), Unit: "%", Max: 100},
	)

	availability := domain.Series{}
	if limite != 0 {
		availability = dataprocessing.Share(domain.Series{
			{Label: "Cupo Disponible", Total: cupo},
			{Label: "Saldo Utilizado", Total: saldo},
		})
	}
	view.AddSeries("disponibilidad_cupo", availability)

	categories := dataprocessing.GroupSpec{Field: domain.ColCategoria, Fallback: s.opts.CardFallback}
	view.AddSeries("gastos_por_categoria", dataprocessing.Share(dataprocessing.GroupBy(movements, categories, dataprocessing.SumOf(domain.ColMonto))))

	view.Table = &domain.Table{
		Title: "Detalle por tarjeta",
		Columns: []string{
			domain.ColTarjeta, domain.ColLimite, domain.ColSaldoActual,
			domain.ColCupoDisponible, domain.ColUsoPorcentaje,
		},
		Rows: cardDetail(cards),
	}

	return s.finish(ctx, view, loaded, start)
}

type loadResult struct {
	rows    map[domain.SheetName][]domain.Row
	notices []domain.SourceNotice
}

// load reads sheets concurrently. Fetches never fail, so the group only
// carries cancellation; notices keep the order sheets were requested in.
func (s *DashboardService) load(ctx context.Context, sheets ...domain.SheetName) loadResult {
	rows := make([][]domain.Row, len(sheets))
	notices := make([]domain.SourceNotice, len(sheets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelSheets)
	for i, sheet := range sheets {
		g.Go(func() error {
			rows[i], notices[i] = s.fetcher.FetchWithNotice(gctx, sheet)
			return nil
		})
	}
	_ = g.Wait()

	out := loadResult{
		rows:    make(map[domain.SheetName][]domain.Row, len(sheets)),
		notices: notices,
	}
	for i, sheet := range sheets {
		if rows[i] == nil {
			rows[i] = []domain.Row{}
		}
		out.rows[sheet] = rows[i]
	}
	return out
}

func (s *DashboardService) newView(name domain.ViewName, r domain.DateRange) *domain.DashboardView {
	return &domain.DashboardView{
		View:        name,
		Range:       r,
		GeneratedAt: s.now().UTC(),
		Series:      make(map[string]domain.Series),
	}
}

func (s *DashboardService) build(specs ...dataprocessing.KpiSpec) []domain.Kpi {
	out := make([]domain.Kpi, len(specs))
	for i, spec := range specs {
		out[i] = s.formatter.Build(spec)
	}
	return out
}

func (s *DashboardService) finish(ctx context.Context, view *domain.DashboardView, loaded loadResult, start time.Time) *domain.DashboardView {
	view.Sources = loaded.notices
	elapsed := s.now().Sub(start)
	degraded := view.Degraded()

	level := slog.LevelDebug
	if degraded {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "view built",
		slog.String("view", string(view.View)),
		slog.Int("kpis", len(view.Kpis)),
		slog.Bool("degraded", degraded),
		slog.Duration("elapsed", elapsed))

	if s.observer != nil {
		s.observer.ObserveView(ctx, string(view.View), elapsed, degraded)
	}
	return view
}

func profitColor(v float64) string {
	if v < 0 {
		return domain.ColorRed
	}
	return domain.ColorGreen
}

// withCTR fills CTR_% on campaigns that do not report it.
func withCTR(rows []domain.Row) []domain.Row {
	out := make([]domain.Row, len(rows))
	for i, row := range rows {
		if row.Has(domain.ColCTR) {
			out[i] = row
			continue
		}
		c := row.Clone()
		c[domain.ColCTR] = dataprocessing.Round2(dataprocessing.Percent(
			dataprocessing.ToNumber(row.Get(domain.ColClics)),
			dataprocessing.ToNumber(row.Get(domain.ColImpresiones)),
		))
		out[i] = c
	}
	return out
}

func cardDetail(cards []domain.Row) []domain.Row {
	out := make([]domain.Row, 0, len(cards))
	for _, card := range cards {
		limite := dataprocessing.ToNumber(card.Get(domain.ColLimite))
		saldo := dataprocessing.ToNumber(card.Get(domain.ColSaldoActual))
		name := strings.TrimSpace(card.Text(domain.ColBanco) + " " + card.Text(domain.ColTarjeta))
		out = append(out, domain.Row{
			domain.ColTarjeta:        name,
			domain.ColLimite:         limite,
			domain.ColSaldoActual:    saldo,
			domain.ColCupoDisponible: limite - saldo,
			domain.ColUsoPorcentaje:  dataprocessing.Round2(dataprocessing.Percent(saldo, limite)),
		})
	}
	return out
}
