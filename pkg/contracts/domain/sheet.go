package domain

import (
	"errors"
	"fmt"
	"strings"
)

// SheetName identifies one tab of the backing spreadsheet.
type SheetName string

const (
	SheetVentas             SheetName = "Ventas"
	SheetProductos          SheetName = "Productos"
	SheetCampanasAds        SheetName = "Campañas_Ads"
	SheetTarjetas           SheetName = "Tarjetas"
	SheetMovimientosTarjeta SheetName = "Movimientos_Tarjeta"
	SheetCostosFijos        SheetName = "Costos_Fijos"
	SheetDashboardBase      SheetName = "Dashboard_Base"
	SheetDiccionarioDatos   SheetName = "Diccionario_Datos"
	SheetDashboard          SheetName = "Dashboard"
)

var allSheets = []SheetName{
	SheetVentas,
	SheetProductos,
	SheetCampanasAds,
	SheetTarjetas,
	SheetMovimientosTarjeta,
	SheetCostosFijos,
	SheetDashboardBase,
	SheetDiccionarioDatos,
	SheetDashboard,
}

// AllSheets returns every known sheet in spreadsheet order.
func AllSheets() []SheetName {
	out := make([]SheetName, len(allSheets))
	copy(out, allSheets)
	return out
}

// Valid reports whether s is one of the known sheets.
func (s SheetName) Valid() bool {
	for _, known := range allSheets {
		if s == known {
			return true
		}
	}
	return false
}

func (s SheetName) String() string {
	return string(s)
}

// ErrUnknownSheet is returned by ParseSheetName for names outside the set.
var ErrUnknownSheet = errors.New("unknown sheet")

// ParseSheetName validates a raw name coming from a query string or CLI flag.
func ParseSheetName(raw string) (SheetName, error) {
	name := SheetName(strings.TrimSpace(raw))
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnknownSheet)
	}
	if !name.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSheet, raw)
	}
	return name, nil
}

// SheetNameStrings returns the enumeration as plain strings, which is the
// shape validator's oneof tag and the CLI help text need.
func SheetNameStrings() []string {
	out := make([]string, len(allSheets))
	for i, s := range allSheets {
		out[i] = string(s)
	}
	return out
}
