package delivery

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CavaPgc/internal/normalize"
	"CavaPgc/internal/sheet"
)

var cavanetHeader = []string{
	"Fecha", "Tiquet", "Bodega", "NifBodega", "Instalacion", "DNI",
	"NombreViticultor", "Variedad", "Segmento", "Parcela", "Kg", "Estado",
}

func TestCavanetTable(t *testing.T) {
	wb := &sheet.Workbook{Sheets: []sheet.Grid{
		{Name: "Resumen", Rows: [][]string{{"x"}}},
		{Name: "Detalle pesadas", Rows: [][]string{
			{"Campaña 2024"},
			{},
			cavanetHeader,
			{"05/09/2024", "1", "Celler", "B1", "Inst", "1A", "Joan", "Macabeu", "GUARDA", "P1", "10", "VALID"},
		}},
	}}
	tbl := Cavanet{}.Table(wb)
	assert.Equal(t, "Detalle pesadas", tbl.Sheet)
	assert.Equal(t, 2, tbl.HeaderRow)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, 4, tbl.Rows[0].Line)
}

func TestCavanetClean(t *testing.T) {
	rows := [][]string{
		{"05/09/2024", "12A", "Celler Sant Pere", "B-123", "Sant Pere-Rubí", "12345678a", "Joan", "Xarel·lo", "Guarda", "08-1/2", "1.250,5", "VALID"},
		{"05/09/2024", "13", "Celler", "B1", "Inst", "1A", "Joan", "Macabeu", "Premium", "P1", "10", "VALID"},
		{"05/09/2024", "14", "Celler", "B1", "Inst", "1A", "Joan", "Macabeu", "GUARDA", "P1", "10", "ANULADO"},
		{"05/09/2024", "15", "Celler", "B1", "Inst", "", "Joan", "Macabeu", "GUARDA", "P1", "10", "VALID"},
		{"05/09/2024", "16", "Celler", "B1", "Inst", "1A", "Joan", "Macabeu", "GUARDA", "P1", "abc", "VALID"},
		{"", "17", "Celler", "B1", "Inst", "1A", "Joan", "Macabeu", "GUARDA", "P1", "-5", " valid "},
		{"05/09/2024", "18", "Celler", "B1", "Inst", "1A", "Joan", "Macabeu", "GUARDA", "P1", "10", "Validación pendiente"},
		{"05/09/2024", "19", "Celler", "B1", "Inst", "1A", "Joan", "Macabeu", "GUARDA", "P1", "10", "VIGENTE"},
		{"05/09/2024", "20", "Celler", "B1", "Inst", "1A", "Joan", "Macabeu", "GUARDA", "P1", "10", "Validada"},
	}
	tbl := sheet.Table{Header: cavanetHeader}
	for i, r := range rows {
		tbl.Rows = append(tbl.Rows, sheet.Row{Line: i + 2, Cells: r})
	}

	out, stats, err := Cavanet{}.Clean(tbl)
	require.NoError(t, err)
	assert.Equal(t, CleanStats{Read: 9, NotGuarda: 1, NotValidated: 4, NoTaxID: 1, BadKg: 1, Kept: 2}, stats)
	require.Len(t, out, 2)

	d := out[0]
	assert.Equal(t, "cavanet", d.Source)
	assert.Equal(t, 2, d.Line)
	assert.True(t, d.HasDate)
	assert.True(t, d.Date.Equal(time.Date(2024, 9, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "12A", d.Ticket)
	assert.Equal(t, "12345678A", d.TaxID)
	assert.Equal(t, "B123", d.CellarTaxID)
	assert.Equal(t, "Sant Pere-Rubí", d.Facility)
	assert.Equal(t, "XARELLO", d.Variety)
	assert.Equal(t, "0812", d.ParcelRefNorm)
	assert.True(t, d.Kg.Equal(decimal.RequireFromString("1250.5")), d.Kg.String())

	assert.False(t, out[1].HasDate)
	assert.True(t, out[1].Kg.IsZero())
}

func TestCavanetMissingKg(t *testing.T) {
	_, _, err := Cavanet{}.Clean(sheet.Table{Header: []string{"Fecha", "DNI", "Variedad"}})
	var mce *normalize.MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, ColKg, mce.Column)
	assert.Equal(t, "cavanet", mce.Entity)
}

func TestRVCClean(t *testing.T) {
	header := []string{
		"dos", "cavaGuardaSuperior", "numPesada", "kgTotals", "nomCeller", "varietatDesc",
		"nifLliurador", "nomLliurador", "nipd", "dataPesada", "origenParcella", "tiquetBascula",
		"motiuPesadaIncidental",
	}
	rows := [][]string{
		{"CV", "", "101", "500", "Celler A", "Macabeu", "111A", "Pere", "N1", "45200", "P1", "T9", ""},
		{"DO", "", "102", "500", "Celler A", "Macabeu", "111A", "Pere", "N1", "45200", "P1", "T9", ""},
		{"cv", "Sí", "103", "500", "Celler A", "Macabeu", "111A", "Pere", "N1", "45200", "P1", "T9", ""},
		{"CV", "", "104", "500", "Celler A", "Macabeu", "111A", "Pere", "N1", "45200", "P1", "T9", "IN-01 Pesada incidental"},
		{"CV", "NO", "", "300", "Celler A", "Parellada", "111A", "Pere", "N1", "45200", "P2", "T7", "IN-02"},
		{"CV", "", "105", "x", "Celler A", "Macabeu", "111A", "Pere", "N1", "45200", "P1", "T9", ""},
	}
	tbl := sheet.Table{Header: header}
	for i, r := range rows {
		tbl.Rows = append(tbl.Rows, sheet.Row{Line: i + 2, Cells: r})
	}

	out, stats, err := RVC{}.Clean(tbl)
	require.NoError(t, err)
	assert.Equal(t, CleanStats{Read: 6, Excluded: 3, BadKg: 1, Kept: 2}, stats)
	require.Len(t, out, 2)

	assert.Equal(t, "101", out[0].Ticket)
	assert.Equal(t, "T9", out[0].ScaleTicket)
	assert.Equal(t, "N1", out[0].GrowerCode)
	assert.Equal(t, "Celler A", out[0].Cellar)
	assert.True(t, out[0].Date.Equal(time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, "T7", out[1].Ticket)
	assert.Equal(t, "IN-02", out[1].Incident)
	assert.Equal(t, "PARELLADA", out[1].Variety)
}

func TestLookup(t *testing.T) {
	s, err := Lookup(" RVC ")
	require.NoError(t, err)
	assert.True(t, s.TicketOrdered())
	assert.Equal(t, ColGrowerCode, s.SiteColumn())

	s, err = Lookup("cavanet")
	require.NoError(t, err)
	assert.False(t, s.TicketOrdered())

	assert.Equal(t, ColFacility, s.SiteColumn())

	_, err = Lookup("xml")
	assert.ErrorContains(t, err, "cavanet, rvc")
}

func TestDeliverySite(t *testing.T) {
	d := Delivery{Facility: "Gelida", GrowerCode: " N7 "}
	assert.Equal(t, "Gelida", d.Site(ColFacility))
	assert.Equal(t, "N7", d.Site(ColGrowerCode))

	d.GrowerCode = ""
	assert.Equal(t, NoGrowerCode, d.Site(ColGrowerCode))
}
