package crosslink

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CavaPgc/internal/correction"
	"CavaPgc/internal/delivery"
	"CavaPgc/internal/normalize"
	"CavaPgc/internal/parcel"
)

func registry() Registry {
	parcels := []parcel.Parcel{
		{TaxID: "111A", Key: "MAB-111A", ParcelRefNorm: "P1", EffectiveSurface: decimal.NewFromInt(1)},
		{TaxID: "111A", Key: "MAB-111A", ParcelRefNorm: "P1", EffectiveSurface: decimal.NewFromInt(1)},
		{TaxID: "111A", Key: "XAB-111A", ParcelRefNorm: "P2", EffectiveSurface: decimal.NewFromInt(1)},
	}
	ledger := parcel.BuildYieldLedger(parcels, decimal.NewFromInt(1000), false)
	adjusted := correction.Adjust(ledger, nil)
	return NewRegistry(parcels, ledger, adjusted)
}

func TestLink(t *testing.T) {
	deliveries := []delivery.Delivery{
		{Line: 2, TaxID: "111A", Variety: "MACABEU", ParcelRefNorm: "P1", Kg: decimal.NewFromInt(10)},
		{Line: 3, TaxID: "999Z", Variety: "MACABEU", ParcelRefNorm: "P1", Kg: decimal.NewFromInt(10)},
		{Line: 4, TaxID: "111A", Variety: "TREPAT", ParcelRefNorm: "P1", Kg: decimal.NewFromInt(10)},
		{Line: 5, TaxID: "111A", Variety: "XARELLO", ParcelRefNorm: "P1", Kg: decimal.NewFromInt(10)},
		{Line: 6, TaxID: "111A", Variety: "XARELLO", ParcelRefNorm: "P2", Kg: decimal.NewFromInt(10)},
	}
	res, err := Link(deliveries, registry())
	require.NoError(t, err)

	// the parcel registered twice must not duplicate line 2
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 2, res.Rows[0].Line)
	assert.Equal(t, "MAB-111A", res.Rows[0].Key)
	assert.True(t, res.Rows[0].Cap.Valid)
	assert.True(t, res.Rows[0].Cap.Decimal.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, 6, res.Rows[1].Line)
	assert.Equal(t, "XAB", res.Rows[1].VarietyCode)

	assert.Equal(t, Dropped{UnknownProducer: 1, UnknownKey: 1, UnknownParcel: 1}, res.Dropped)
	assert.Equal(t, 3, res.Dropped.Total())
}

func TestLinkUnregisteredGrowerExcluded(t *testing.T) {
	deliveries := []delivery.Delivery{
		{Line: 2, TaxID: "555X", Variety: "MACABEU", ParcelRefNorm: "P1", Kg: decimal.NewFromInt(10)},
	}
	res, err := Link(deliveries, registry())
	assert.ErrorIs(t, err, ErrEmptyCrossLink)
	assert.Empty(t, res.Rows)
	assert.Equal(t, 1, res.Dropped.UnknownProducer)
}

func TestLinkDerivedVarietyKey(t *testing.T) {
	key := normalize.BuildKey("Merlot", "111-a")
	parcels := []parcel.Parcel{
		{TaxID: "111A", Key: key, ParcelRefNorm: "P9", EffectiveSurface: decimal.NewFromInt(1)},
	}
	ledger := parcel.BuildYieldLedger(parcels, decimal.NewFromInt(1000), false)
	reg := NewRegistry(parcels, ledger, correction.Adjust(ledger, nil))

	res, err := Link([]delivery.Delivery{
		{Line: 2, TaxID: "111A", Variety: "MERLOT", ParcelRefNorm: "P9", Kg: decimal.NewFromInt(10)},
	}, reg)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "MER-111A", res.Rows[0].Key)
	assert.Equal(t, "MER", res.Rows[0].VarietyCode)
}
