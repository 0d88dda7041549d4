package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Row is one spreadsheet record keyed by column header. Rows carry no fixed
// schema: any column may be missing and unknown columns pass through untouched.
type Row map[string]any

// Get returns the raw cell value for col, or nil when the column is absent.
func (r Row) Get(col string) any {
	if r == nil {
		return nil
	}
	return r[col]
}

// Has reports whether col is present with a non-blank value.
func (r Row) Has(col string) bool {
	return r.Text(col) != ""
}

// Text returns the cell as trimmed text. Numbers are rendered without
// trailing zeros; absent or nil cells yield "".
func (r Row) Text(col string) string {
	switch v := r.Get(col).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Clone returns a shallow copy so callers can annotate a row without
// touching the fetched snapshot.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Columns for the Ventas sheet.
const (
	ColFecha                = "Fecha"
	ColIDVenta              = "ID_Venta"
	ColProducto             = "Producto"
	ColCantidad             = "Cantidad"
	ColValorVenta           = "Valor_Venta"
	ColMetodoPago           = "Metodo_Pago"
	ColCiudad               = "Ciudad"
	ColCostoProducto        = "Costo_Producto"
	ColCostoEmpaque         = "Costo_Empaque"
	ColCostoEnvio           = "Costo_Envio"
	ColComisionesPlataforma = "Comisiones_Plataforma"
	ColCostoPublicidad      = "Costo_Publicidad"
)

// Columns for the Campañas_Ads sheet.
const (
	ColPlataformaAds     = "Plataforma_Ads"
	ColNombreCampana     = "Nombre_Campaña"
	ColEstadoCampana     = "Estado_Campaña"
	ColInversion         = "Inversion"
	ColPresupuestoDiario = "Presupuesto_Diario"
	ColImpresiones       = "Impresiones"
	ColClics             = "Clics"
	ColCTR               = "CTR_%"
	ColConversiones      = "Conversiones"
	ColVentasRegistradas = "Ventas_registradas"
	ColROASPlataforma    = "ROAS_Plataforma"
)

// Columns for the Tarjetas and Movimientos_Tarjeta sheets.
const (
	ColTarjeta        = "Tarjeta"
	ColBanco          = "Banco"
	ColLimite         = "Limite"
	ColSaldoActual    = "Saldo_Actual"
	ColCupoDisponible = "Cupo_Disponible"
	ColUsoPorcentaje  = "Uso_%"
	ColMonto          = "Monto"
	ColCategoria      = "Categoria"
	ColDescripcion    = "Descripcion"
)
