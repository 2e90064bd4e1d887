package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"CavaPgc/internal/allocation"
	"CavaPgc/internal/crosslink"
	"CavaPgc/internal/delivery"
	"CavaPgc/internal/normalize"
	"CavaPgc/internal/sheet"
	"CavaPgc/internal/workbook"
)

func parcelsWorkbook() *sheet.Workbook {
	return &sheet.Workbook{Sheets: []sheet.Grid{{Name: "Parcelas", Rows: [][]string{
		{"Ejercicio", "RefParcela", "NRegistro", "NIF", "Apellidos", "Nombre", "Variedad", "Superficie", "PorcentajeTitularidad", "Estado", "Segmento"},
		{"2024", "P1", "R1", "1A", "Puig", "Joan", "Macabeu", "0,1", "100", "VALID", "GUARDA"},
	}}}}
}

var deliveryHeader = []string{
	"Fecha", "Tiquet", "Bodega", "NifBodega", "Instalacion", "DNI",
	"NombreViticultor", "Variedad", "Segmento", "Parcela", "Kg", "Estado",
}

func deliveriesWorkbook(rows ...[]string) *sheet.Workbook {
	return &sheet.Workbook{Sheets: []sheet.Grid{{Name: "Pesadas", Rows: append([][]string{deliveryHeader}, rows...)}}}
}

func delivered(date, ticket, taxID, kg string) []string {
	return []string{date, ticket, "Celler A", "B1", "Gelida", taxID, "Joan", "Macabeu", "GUARDA", "P1", kg, "VALID"}
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Logger = zaptest.NewLogger(t)
	return cfg
}

func TestRun(t *testing.T) {
	in := Input{
		Parcels: parcelsWorkbook(),
		Deliveries: deliveriesWorkbook(
			delivered("01/09/2024", "3", "1A", "600"),
			delivered("02/09/2024", "1", "1A", "600"),
			delivered("03/09/2024", "2", "1A", "600"),
			delivered("03/09/2024", "4", "9Z", "100"),
		),
	}
	res, err := Run(context.Background(), in, testConfig(t))
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Empty(t, res.Inputs)
	assert.Equal(t, "cavanet", res.Source)
	assert.Equal(t, 1, res.Stats.Dropped.UnknownProducer)
	assert.Equal(t, 3, res.Stats.Linked)
	assert.Equal(t, allocation.ByDate, res.Primary.Order)

	quota, excess := res.Totals()
	assert.True(t, quota.Equal(decimal.NewFromInt(1050)), quota.String())
	assert.True(t, excess.Equal(decimal.NewFromInt(750)), excess.String())

	first := res.ByDate.Entries[0]
	assert.Equal(t, "3", first.Ticket)
	assert.True(t, first.KgQuota.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, "1", res.ByTicket.Entries[0].Ticket)
	assert.Equal(t, []string{"MAB-1A"}, res.Divergent)

	require.Len(t, res.Keys, 1)
	assert.Equal(t, "MAB-1A", res.Keys[0].Key)

	sheets := res.Report().Sheets()
	names := make([]string, len(sheets))
	for i, s := range sheets {
		names[i] = s.Name
	}
	assert.Contains(t, names, workbook.SheetExcess)
	assert.NotContains(t, names, workbook.SheetAdjustments)

	_, err = workbook.Bytes(sheets)
	require.NoError(t, err)
}

func TestRunWithCorrections(t *testing.T) {
	in := Input{
		Parcels:    parcelsWorkbook(),
		Deliveries: deliveriesWorkbook(delivered("01/09/2024", "1", "1A", "1050")),
		Corrections: &sheet.Workbook{Sheets: []sheet.Grid{{Name: "IT04", Rows: [][]string{
			{"vartip", "kg_a_restar"},
			{"mab-1a", "50"},
		}}}},
	}
	res, err := Run(context.Background(), in, testConfig(t))
	require.NoError(t, err)
	require.Len(t, res.Adjusted, 1)
	assert.True(t, res.Adjusted[0].AdjustedYield.Equal(decimal.NewFromInt(1000)))

	quota, excess := res.Totals()
	assert.True(t, quota.Equal(decimal.NewFromInt(1000)))
	assert.True(t, excess.Equal(decimal.NewFromInt(50)))
	assert.NotEmpty(t, res.Report().Corrections)
}

func TestRunRVCUsesTicketOrder(t *testing.T) {
	in := Input{
		Parcels: parcelsWorkbook(),
		Deliveries: &sheet.Workbook{Sheets: []sheet.Grid{{Name: "RVC", Rows: [][]string{
			{"dataPesada", "numPesada", "nomCeller", "instalacio", "nifLliurador", "nomLliurador", "nipd", "varietatDesc", "segment", "origenParcella", "kgTotals", "estat", "dos"},
			{"01/09/2024", "2", "Celler A", "Gelida", "1A", "Joan", "N3", "Macabeu", "GUARDA", "P1", "600", "VALID", "CV"},
			{"02/09/2024", "1", "Celler A", "Gelida", "1A", "Joan", "", "Macabeu", "GUARDA", "P1", "600", "VALID", "CV"},
		}}}},
	}
	cfg := testConfig(t)
	cfg.Source = "rvc"
	res, err := Run(context.Background(), in, cfg)
	require.NoError(t, err)
	assert.Equal(t, allocation.ByTicket, res.Primary.Order)
	assert.Equal(t, "1", res.Primary.Entries[0].Ticket)

	assert.Equal(t, delivery.ColGrowerCode, res.SiteColumn)
	require.Len(t, res.Cellars, 2)
	assert.Equal(t, "N3", res.Cellars[0].Site)
	assert.True(t, res.Cellars[0].Excess.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, delivery.NoGrowerCode, res.Cellars[1].Site)

	var names []string
	for _, s := range res.Report().Sheets() {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, workbook.SheetExcessByGrower)
	assert.NotContains(t, names, workbook.SheetExcessByFacility)
}

func TestRunEmptyCrossLink(t *testing.T) {
	in := Input{
		Parcels:    parcelsWorkbook(),
		Deliveries: deliveriesWorkbook(delivered("01/09/2024", "1", "9Z", "100")),
	}
	_, err := Run(context.Background(), in, testConfig(t))
	assert.True(t, errors.Is(err, crosslink.ErrEmptyCrossLink))
}

func TestRunMissingKgColumn(t *testing.T) {
	in := Input{
		Parcels: parcelsWorkbook(),
		Deliveries: &sheet.Workbook{Sheets: []sheet.Grid{{Name: "Pesadas", Rows: [][]string{
			{"Fecha", "Tiquet", "Bodega", "DNI", "Variedad", "Parcela"},
			{"01/09/2024", "1", "Celler A", "1A", "Macabeu", "P1"},
		}}}},
	}
	_, err := Run(context.Background(), in, testConfig(t))
	var mce *normalize.MissingColumnError
	require.True(t, errors.As(err, &mce), "got %v", err)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, Input{Parcels: parcelsWorkbook(), Deliveries: deliveriesWorkbook()}, testConfig(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunUnknownSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source = "sap"
	_, err := Run(context.Background(), Input{Parcels: parcelsWorkbook(), Deliveries: deliveriesWorkbook()}, cfg)
	assert.Error(t, err)
}

func TestInputChecksums(t *testing.T) {
	parcels, err := sheet.Read("parcelas.csv", []byte("NIF;Superficie\n1A;1\n"))
	require.NoError(t, err)
	sums := Input{Parcels: parcels, Deliveries: deliveriesWorkbook()}.Checksums()
	require.Len(t, sums, 1)
	assert.Regexp(t, `^parcelas\.csv@[0-9a-f]{12}$`, sums["parcels"])
}

func TestParcels(t *testing.T) {
	reg, err := Parcels(parcelsWorkbook(), testConfig(t))
	require.NoError(t, err)
	require.Len(t, reg.Ledger, 1)
	assert.True(t, reg.Ledger[0].MaxYield.Equal(decimal.NewFromInt(1050)))
	assert.Len(t, reg.Report(true).Sheets(), 2)
}
