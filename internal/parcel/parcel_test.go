package parcel

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CavaPgc/internal/normalize"
	"CavaPgc/internal/sheet"
)

func table(header []string, rows ...[]string) sheet.Table {
	t := sheet.Table{Sheet: SheetName, Header: header}
	for i, r := range rows {
		t.Rows = append(t.Rows, sheet.Row{Line: i + 2, Cells: r})
	}
	return t
}

var registryHeader = []string{
	"Ejercicio", "RefParcela", "NRegistro", "NIF", "Apellidos", "Nombre",
	"Variedad", "Superficie", "PorcentajeTitularidad", "Estado", "Segmento",
}

func TestCleanXarelloHalfOwnership(t *testing.T) {
	tbl := table(registryHeader,
		[]string{"2024.0", "08-123/4", "R1", "12345678A, ", "Puig", "Joan", "Xarel.lo", "2,5", "50", "Validada", "Guarda"},
	)
	parcels, stats, err := Clean(tbl)
	require.NoError(t, err)
	require.Len(t, parcels, 1)
	p := parcels[0]

	assert.Equal(t, "2024", p.Year)
	assert.Equal(t, "12345678A", p.TaxID)
	assert.Equal(t, "XARELLO", p.Variety)
	assert.Equal(t, "XAB", p.VarietyCode)
	assert.Equal(t, "XAB-12345678A", p.Key)
	assert.Equal(t, "081234", p.ParcelRefNorm)
	assert.Equal(t, "Joan Puig", p.FullName)
	assert.True(t, p.EffectiveSurface.Equal(decimal.RequireFromString("1.25")), p.EffectiveSurface.String())
	assert.Equal(t, CleanStats{Read: 1, Kept: 1}, stats)

	ledger := BuildYieldLedger(parcels, decimal.NewFromInt(10500), true)
	require.Len(t, ledger, 1)
	assert.True(t, ledger[0].MaxYield.Equal(decimal.NewFromInt(13125)), ledger[0].MaxYield.String())
	assert.Equal(t, "2024", ledger[0].Year)
}

func TestCleanFilters(t *testing.T) {
	tbl := table(registryHeader,
		[]string{"2024", "A1", "", "111A", "", "", "Macabeu", "1", "", "VALID", "Guarda Superior"},
		[]string{"2024", "A2", "", "222B", "", "", "Macabeu", "1", "", "Pendiente", "GUARDA"},
		[]string{"2024", "A3", "", " , ", "", "", "Macabeu", "1", "", "VALID", "GUARDA"},
		[]string{"2024", "A4", "", "333C", "", "", "Macabeu", "n/d", "", "VALID", "GUARDA"},
		[]string{"2024", "A5", "", "444D", "", "", "Macabeu", "1", "250", "vigent", "guarda"},
		[]string{"2024", "A6", "", "555E", "", "", "Macabeu", "1", "x", "VALIDADO", "GUARDA"},
	)
	parcels, stats, err := Clean(tbl)
	require.NoError(t, err)
	assert.Equal(t, CleanStats{Read: 6, NotGuarda: 1, NotValidated: 1, NoTaxID: 1, BadSurface: 1, Kept: 2}, stats)
	require.Len(t, parcels, 2)

	// ownership clamps to 100 and falls back to 100 when not numeric
	assert.True(t, parcels[0].Ownership.Equal(decimal.NewFromInt(100)))
	assert.True(t, parcels[1].Ownership.Equal(decimal.NewFromInt(100)))
	assert.True(t, parcels[0].EffectiveSurface.Equal(decimal.NewFromInt(1)))
}

func TestCleanWithoutNameColumns(t *testing.T) {
	tbl := table([]string{"nif", "Varietat", "Superfície (ha)", "Ref Parcela"},
		[]string{"12345678A", "Chardonnay", "0,75", "P-1"},
	)
	parcels, _, err := Clean(tbl)
	require.NoError(t, err)
	require.Len(t, parcels, 1)
	assert.Equal(t, "N/A", parcels[0].FullName)
	assert.Equal(t, "CHB-12345678A", parcels[0].Key)
	assert.Equal(t, "P1", parcels[0].ParcelRefNorm)
}

func TestCleanMissingSurface(t *testing.T) {
	tbl := table([]string{"NIF", "Variedad", "Estado"}, []string{"1", "Macabeu", "VALID"})
	_, _, err := Clean(tbl)
	var mce *normalize.MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, ColSurface, mce.Column)
	assert.Equal(t, []string{"NIF", "Variedad", "Estado"}, mce.Available)
}

func TestBuildYieldLedger(t *testing.T) {
	parcels := []Parcel{
		{Year: "2024", Key: "MAB-1", TaxID: "1", Segment: "GUARDA", EffectiveSurface: decimal.RequireFromString("0.5")},
		{Year: "2024", Key: "MAB-1", TaxID: "1", FullName: "Ana", EffectiveSurface: decimal.RequireFromString("0.25")},
		{Year: "2024", Key: "XAB-2", TaxID: "2", EffectiveSurface: decimal.RequireFromString("2")},
		{Year: "2023", Key: "MAB-1", TaxID: "1", EffectiveSurface: decimal.RequireFromString("0.1")},
	}
	rate := decimal.NewFromInt(10500)

	byYear := BuildYieldLedger(parcels, rate, true)
	require.Len(t, byYear, 3)
	assert.Equal(t, "2023", byYear[0].Year)
	assert.Equal(t, "XAB-2", byYear[1].Key)
	assert.Equal(t, "MAB-1", byYear[2].Key)
	assert.Equal(t, "Ana", byYear[2].Name)
	assert.Equal(t, "GUARDA", byYear[2].Segment)
	assert.True(t, byYear[2].Hectares.Equal(decimal.RequireFromString("0.75")))
	assert.True(t, byYear[2].MaxYield.Equal(decimal.NewFromInt(7875)))

	totals := TotalsByKey(byYear)
	assert.True(t, totals["MAB-1"].Equal(decimal.NewFromInt(8925)), totals["MAB-1"].String())

	flat := BuildYieldLedger(parcels, rate, false)
	require.Len(t, flat, 2)
	assert.Equal(t, "XAB-2", flat[0].Key)
	assert.Equal(t, "", flat[0].Year)
	assert.True(t, flat[1].Hectares.Equal(decimal.RequireFromString("0.85")))

	assert.Equal(t, map[string]bool{"1": true, "2": true}, Producers(flat))
}

func TestBuildYieldLedgerIgnoresYearWhenAbsent(t *testing.T) {
	parcels := []Parcel{{Key: "MAB-1", TaxID: "1", EffectiveSurface: decimal.NewFromInt(1)}}
	ledger := BuildYieldLedger(parcels, decimal.NewFromInt(100), true)
	require.Len(t, ledger, 1)
	assert.Equal(t, "", ledger[0].Year)
	assert.True(t, ledger[0].MaxYield.Equal(decimal.NewFromInt(100)))
}
