package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_Text(t *testing.T) {
	row := Row{
		"Ciudad":   "  Medellín ",
		"Cantidad": float64(3),
		"Valor":    json.Number("1500.5"),
		"Activo":   true,
		"Vacio":    nil,
		"Entero":   7,
	}

	tests := []struct {
		col  string
		want string
	}{
		{"Ciudad", "Medellín"},
		{"Cantidad", "3"},
		{"Valor", "1500.5"},
		{"Activo", "true"},
		{"Vacio", ""},
		{"Entero", "7"},
		{"Missing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			assert.Equal(t, tt.want, row.Text(tt.col))
		})
	}
}

func TestRow_HasAndGet(t *testing.T) {
	row := Row{"Metodo_Pago": "Efectivo", "Ciudad": "   "}

	assert.True(t, row.Has(ColMetodoPago))
	assert.False(t, row.Has(ColCiudad), "blank cells count as absent")
	assert.False(t, row.Has(ColProducto))
	assert.Equal(t, "Efectivo", row.Get(ColMetodoPago))

	var nilRow Row
	assert.Nil(t, nilRow.Get(ColMetodoPago))
	assert.Equal(t, "", nilRow.Text(ColMetodoPago))
}

func TestRow_CloneIsIndependent(t *testing.T) {
	row := Row{"Producto": "Vela"}
	clone := row.Clone()
	clone["Producto"] = "Jabón"

	assert.Equal(t, "Vela", row["Producto"])
	assert.Equal(t, "Jabón", clone["Producto"])
}

func TestSheetName_Parse(t *testing.T) {
	tests := []struct {
		raw     string
		want    SheetName
		wantErr bool
	}{
		{raw: "Ventas", want: SheetVentas},
		{raw: " Campañas_Ads ", want: SheetCampanasAds},
		{raw: "Dashboard", want: SheetDashboard},
		{raw: "ventas", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "Usuarios", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSheetName(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnknownSheet)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllSheets(t *testing.T) {
	sheets := AllSheets()
	require.Len(t, sheets, 9)
	for _, s := range sheets {
		assert.True(t, s.Valid(), s)
	}

	// the returned slice is a copy
	sheets[0] = "Otro"
	assert.Equal(t, SheetVentas, AllSheets()[0])
	assert.Equal(t, "Ventas", SheetNameStrings()[0])
}

func TestDateRange_Contains(t *testing.T) {
	day := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		require.NoError(t, err)
		return d
	}

	r := DateRange{From: day("2024-03-01"), To: day("2024-03-31")}

	assert.True(t, r.Contains(day("2024-03-01")))
	assert.True(t, r.Contains(day("2024-03-31").Add(23*time.Hour)), "upper bound covers the whole day")
	assert.False(t, r.Contains(day("2024-02-29")))
	assert.False(t, r.Contains(day("2024-04-01")))

	open := DateRange{}
	assert.True(t, open.IsZero())
	assert.True(t, open.Contains(day("1999-01-01")))

	fromOnly := DateRange{From: day("2024-03-01")}
	assert.True(t, fromOnly.Contains(day("2030-01-01")))
	assert.False(t, fromOnly.Contains(day("2024-01-01")))
}

func TestDashboardView_AddSeriesKeepsOrder(t *testing.T) {
	var v DashboardView
	v.AddSeries("ciudades", Series{{Label: "Cali", Total: 2}})
	v.AddSeries("metodos", nil)
	v.AddSeries("ciudades", Series{{Label: "Bogotá", Total: 1}})

	assert.Equal(t, []string{"ciudades", "metodos"}, v.SeriesOrder)
	assert.NotNil(t, v.Series["metodos"])
	assert.Equal(t, []string{"Bogotá"}, v.Series["ciudades"].Labels())
}

func TestDashboardView_Degraded(t *testing.T) {
	v := DashboardView{Sources: []SourceNotice{{Sheet: SheetVentas, Rows: 3}}}
	assert.False(t, v.Degraded())

	v.Sources = append(v.Sources, SourceNotice{Sheet: SheetTarjetas, Message: "no se pudo leer la hoja"})
	assert.True(t, v.Degraded())
}

func TestSeries_Helpers(t *testing.T) {
	s := Series{{Label: "Efectivo", Total: 400}, {Label: "Tarjeta", Total: 200}}

	assert.Equal(t, 600.0, s.Total())
	got, ok := s.Lookup("Tarjeta")
	assert.True(t, ok)
	assert.Equal(t, 200.0, got)
	_, ok = s.Lookup("Nequi")
	assert.False(t, ok)
}

func TestTable_Records(t *testing.T) {
	tbl := Table{
		Columns: []string{ColFecha, ColValorVenta},
		Rows: []Row{
			{ColFecha: "2024-03-01", ColValorVenta: float64(1200)},
			{ColFecha: "2024-03-02"},
		},
	}

	assert.Equal(t, [][]string{{"2024-03-01", "1200"}, {"2024-03-02", ""}}, tbl.Records())
}
