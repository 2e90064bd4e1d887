package vibase

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

var header = []string{"Fecha", "Empresa", "Instalacion", "Descripcion", "TipoVinoBase", "Segmento", "Zona", "SubZona", "Acumulado"}

func TestFacility(t *testing.T) {
	cases := map[string]string{
		"Celler Josep Piñol, S.L. - Font - Rubí": "CELLER JOSEP PINOL, S.L.-FONT-RUBI",
		"Celler Josep Piñol, S.L. - Rubí":        "CELLER JOSEP PINOL, S.L.-FONT-RUBI",
		"Caves Gelida - Sector 2 - Gelida":       "CAVES GELIDA-GELIDA",
		" Únic ":                                 "UNIC",
		"- Sant Sadurní -":                       "- SANT SADURNI -",
	}
	for in, want := range cases {
		assert.Equal(t, want, Facility(in), in)
	}
}

func TestDescription(t *testing.T) {
	assert.Equal(t, "BLANC-JOVE", Description(" - blanc  -  jove"))
	assert.Equal(t, "", Description(""))
}

func TestTableHeaderDetection(t *testing.T) {
	top := &sheet.Workbook{Sheets: []sheet.Grid{{Name: "Hoja1", Rows: [][]string{header, {"01/09/2024"}}}}}
	assert.Equal(t, 0, Table(top).HeaderRow)

	rows := [][]string{{"Moviments vi base"}, {}, {"Campanya 2024"}, {}, {}, {}, header, {"01/09/2024"}}
	titled := &sheet.Workbook{Sheets: []sheet.Grid{{Name: "Hoja1", Rows: rows}}}
	tbl := Table(titled)
	assert.Equal(t, 6, tbl.HeaderRow)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, 8, tbl.Rows[0].Line)
}

func TestProcessKeepsLatest(t *testing.T) {
	wb := &sheet.Workbook{Sheets: []sheet.Grid{{Name: "Hoja1", Rows: [][]string{
		header,
		{"01/09/2024", "Caves A", "Caves A - Gelida", "x", "BLANC", "GUARDA", "Z1", "S1", "100"},
		{"15/09/2024", "Caves A", "Caves A-Gelida", "x", "BLANC", "GUARDA", "Z1", "S1", "250"},
		{"15/09/2024", "Caves A", "CAVES A - GELIDA", "x", "BLANC", "GUARDA", "Z1", "S1", "999"},
		{"", "Caves A", "Caves A - Gelida", "x", "BLANC", "GUARDA", "Z1", "S1", "5"},
		{"20/09/2024", "Alta", "Alta - Rubí", "x", "ROSAT", "GUARDA", "Z1", "S2", "n/d"},
	}}}}

	latest, err := Process(wb)
	require.NoError(t, err)
	require.Len(t, latest, 2)

	assert.Equal(t, "ALTA-RUBI", latest[0].Facility)
	assert.Equal(t, "CAVES A-GELIDA", latest[1].Facility)
	assert.Equal(t, "250", latest[1].Accumulated)
	assert.True(t, latest[1].Date.Equal(time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC)))
	assert.True(t, Total(latest).Equal(decimal.NewFromInt(250)))

	s := Sheet(latest)
	assert.Equal(t, SheetName, s.Name)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, "n/d", s.Rows[0][7])
	assert.True(t, s.Rows[1][7].(decimal.Decimal).Equal(decimal.NewFromInt(250)))
}

func TestLatestUndatedOnly(t *testing.T) {
	latest := Latest([]Movement{
		{Line: 3, Facility: "A", Accumulated: "1"},
		{Line: 2, Facility: "A", Accumulated: "2"},
	})
	require.Len(t, latest, 1)
	assert.Equal(t, "2", latest[0].Accumulated)
	assert.Nil(t, Sheet(latest).Rows[0][0])
}

func TestProcessMissingColumn(t *testing.T) {
	wb := &sheet.Workbook{Sheets: []sheet.Grid{{Name: "Hoja1", Rows: [][]string{
		{"Fecha", "Instalacion", "Acumulado"},
	}}}}
	_, err := Process(wb)
	var mce *normalize.MissingColumnError
	assert.True(t, errors.As(err, &mce))
}
