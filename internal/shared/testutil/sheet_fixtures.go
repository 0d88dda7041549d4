package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"fennixdash/pkg/contracts/domain"
)

// SalesRows is a small Ventas sheet with localized amounts, a missing
// payment method and a missing quantity.
func SalesRows() []domain.Row {
	return []domain.Row{
		{
			"Fecha": "2024-03-01", "ID_Venta": "V-001", "Producto": "Vela Lavanda", "Cantidad": "2",
			"Valor_Venta": "100.000", "Metodo_Pago": "Efectivo", "Ciudad": "Cali",
			"Costo_Producto": "30.000", "Costo_Empaque": "5.000", "Costo_Envio": "10.000",
			"Comisiones_Plataforma": "0", "Costo_Publicidad": "20.000",
		},
		{
			"Fecha": "2024-03-02", "ID_Venta": "V-002", "Producto": "Jabón Avena", "Cantidad": 1,
			"Valor_Venta": 200000, "Metodo_Pago": "Tarjeta", "Ciudad": "Bogotá",
			"Costo_Producto": 60000, "Costo_Empaque": 5000, "Costo_Envio": 15000,
			"Comisiones_Plataforma": 8000, "Costo_Publicidad": 40000,
		},
		{
			"Fecha": "2024-03-15", "ID_Venta": "V-003", "Producto": "Vela Lavanda",
			"Valor_Venta": "300.000", "Metodo_Pago": "Efectivo", "Ciudad": "Cali",
			"Costo_Producto": "90.000", "Costo_Empaque": "10.000", "Costo_Envio": "",
			"Comisiones_Plataforma": "12.000", "Costo_Publicidad": "0",
		},
		{
			"Fecha": "2024-04-01", "ID_Venta": "V-004", "Producto": "Difusor", "Cantidad": 3,
			"Valor_Venta": "$ 400.000", "Metodo_Pago": "", "Ciudad": "Medellín",
			"Costo_Producto": "120.000", "Costo_Empaque": "0", "Costo_Envio": "20.000",
			"Comisiones_Plataforma": "0", "Costo_Publicidad": "40.000",
		},
	}
}

// CampaignRows is a Campañas_Ads sheet across two platforms.
func CampaignRows() []domain.Row {
	return []domain.Row{
		{
			"Plataforma_Ads": "Meta", "Nombre_Campaña": "Lanzamiento Velas", "Estado_Campaña": "Activa",
			"Inversion": "500.000", "Presupuesto_Diario": "20.000", "Impresiones": "10.000", "Clics": "250",
			"Conversiones": "12", "Ventas_registradas": "1.500.000", "ROAS_Plataforma": "3",
		},
		{
			"Plataforma_Ads": "TikTok", "Nombre_Campaña": "Difusores", "Estado_Campaña": "Pausada",
			"Inversion": 200000, "Presupuesto_Diario": 10000, "Impresiones": 30000, "Clics": 150,
			"Conversiones": 3, "Ventas_registradas": 300000, "ROAS_Plataforma": 1.5,
		},
		{
			"Plataforma_Ads": "Meta", "Nombre_Campaña": "Remarketing", "Estado_Campaña": "Activa",
			"Inversion": "300.000", "Presupuesto_Diario": "15.000", "Impresiones": "10.000", "Clics": "100",
			"Conversiones": "5", "Ventas_registradas": "600.000", "ROAS_Plataforma": "1,5",
		},
	}
}

// CardRows is a Tarjetas sheet.
func CardRows() []domain.Row {
	return []domain.Row{
		{"Tarjeta": "Visa Oro", "Limite": "5.000.000", "Saldo_Actual": "1.500.000"},
		{"Tarjeta": "Mastercard", "Limite": 3000000, "Saldo_Actual": 500000},
	}
}

// CardMovementRows is a Movimientos_Tarjeta sheet.
func CardMovementRows() []domain.Row {
	return []domain.Row{
		{"Fecha": "2024-03-03", "Tarjeta": "Visa Oro", "Monto": "250.000", "Categoria": "Inventario", "Descripcion": "Cera de soya"},
		{"Fecha": "2024-03-09", "Tarjeta": "Visa Oro", "Monto": "150.000", "Categoria": "Publicidad", "Descripcion": "Meta Ads"},
		{"Fecha": "2024-03-20", "Tarjeta": "Mastercard", "Monto": "100.000", "Categoria": "Inventario", "Descripcion": "Esencias"},
		{"Fecha": "2024-03-21", "Tarjeta": "Mastercard", "Monto": "40.000", "Categoria": "", "Descripcion": "Sin clasificar"},
	}
}

// AppendCall records one appendRow request received by FakeAppsScript.
type AppendCall struct {
	Sheet string         `json:"sheet"`
	Row   map[string]any `json:"row"`
}

// FakeAppsScript is an httptest stand-in for the Apps Script web app. Sheets
// answer with the {rows:[...]} envelope unless a raw body or a failing status
// was configured for them. Unconfigured sheets answer with an empty envelope.
type FakeAppsScript struct {
	Server *httptest.Server

	mu       sync.Mutex
	bodies   map[string]string
	statuses map[string]int
	appended []AppendCall
	requests int
}

// NewFakeAppsScript starts a fake endpoint that is closed with the test.
func NewFakeAppsScript(t *testing.T) *FakeAppsScript {
	t.Helper()
	f := &FakeAppsScript{
		bodies:   make(map[string]string),
		statuses: make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the base URL to configure the client with.
func (f *FakeAppsScript) URL() string { return f.Server.URL }

// SetRows serves rows for sheet inside the {rows:[...]} envelope.
func (f *FakeAppsScript) SetRows(sheet domain.SheetName, rows []domain.Row) {
	b, _ := json.Marshal(map[string]any{"rows": rows})
	f.SetBody(sheet, string(b))
}

// SetBody serves body verbatim for sheet.
func (f *FakeAppsScript) SetBody(sheet domain.SheetName, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[string(sheet)] = body
}

// Fail makes every request for sheet answer with status.
func (f *FakeAppsScript) Fail(sheet domain.SheetName, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[string(sheet)] = status
}

// Appended returns the appendRow calls received so far.
func (f *FakeAppsScript) Appended() []AppendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AppendCall, len(f.appended))
	copy(out, f.appended)
	return out
}

// Requests counts every request served.
func (f *FakeAppsScript) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *FakeAppsScript) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests++
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	q := r.URL.Query()

	switch {
	case r.Method == http.MethodGet && q.Get("action") == "getSheet":
		sheet := q.Get("sheet")
		f.mu.Lock()
		status, failing := f.statuses[sheet]
		body, ok := f.bodies[sheet]
		f.mu.Unlock()

		if failing {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":"Apps Script failure"}`)
			return
		}
		if !ok {
			body = `{"rows":[]}`
		}
		_, _ = io.WriteString(w, body)

	case r.Method == http.MethodPost && q.Get("action") == "appendRow":
		var call AppendCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"bad body"}`)
			return
		}
		f.mu.Lock()
		status, failing := f.statuses[call.Sheet]
		if !failing {
			f.appended = append(f.appended, call)
		}
		f.mu.Unlock()

		if failing {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":"Apps Script failure"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "sheet": call.Sheet})

	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"unknown action"}`)
	}
}
