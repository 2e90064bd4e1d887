// Package crosslink joins cleaned deliveries to the registered producers,
// the adjusted yield ledger and the registered parcels.
package crosslink

import (
	"errors"

	"github.com/shopspring/decimal"

	"CavaPgc/internal/correction"
	"CavaPgc/internal/delivery"
	"CavaPgc/internal/normalize"
	"CavaPgc/internal/parcel"
)

// ErrEmptyCrossLink means no delivery survived the joins. Allocation must
// not run on an empty set.
var ErrEmptyCrossLink = errors.New("no delivery matched a registered producer, key and parcel")

// Linked is a delivery with its key and the key's cap.
type Linked struct {
	delivery.Delivery
	Key         string
	VarietyCode string
	Cap         decimal.NullDecimal
}

// Dropped counts deliveries removed by each join.
type Dropped struct {
	UnknownProducer int
	UnknownKey      int
	UnknownParcel   int
}

func (d Dropped) Total() int {
	return d.UnknownProducer + d.UnknownKey + d.UnknownParcel
}

type Result struct {
	Rows    []Linked
	Dropped Dropped
}

// Registry holds the lookup sets the joins run against.
type Registry struct {
	Producers map[string]bool
	Caps      map[string]decimal.Decimal
	Pairs     map[parcel.ParcelPair]bool
}

// NewRegistry builds the lookup sets from the cleaned parcels, the yield
// ledger and its adjustment.
func NewRegistry(parcels []parcel.Parcel, ledger []parcel.YieldEntry, adjusted []correction.Adjusted) Registry {
	return Registry{
		Producers: parcel.Producers(ledger),
		Caps:      correction.Caps(adjusted),
		Pairs:     parcel.Pairs(parcels),
	}
}

// Link keeps the deliveries whose grower is registered, whose key has an
// adjusted yield and whose (key, parcel) pair is in the registry. The pair
// lookup is a set so a parcel registered twice never duplicates a delivery.
// Input order is preserved.
func Link(deliveries []delivery.Delivery, reg Registry) (Result, error) {
	var res Result
	for _, d := range deliveries {
		if !reg.Producers[d.TaxID] {
			res.Dropped.UnknownProducer++
			continue
		}
		key := normalize.BuildKey(d.Variety, d.TaxID)
		capKg, ok := reg.Caps[key]
		if !ok {
			res.Dropped.UnknownKey++
			continue
		}
		if !reg.Pairs[parcel.ParcelPair{Key: key, ParcelRef: d.ParcelRefNorm}] {
			res.Dropped.UnknownParcel++
			continue
		}
		res.Rows = append(res.Rows, Linked{
			Delivery:    d,
			Key:         key,
			VarietyCode: normalize.VarietyCode(d.Variety),
			Cap:         decimal.NewNullDecimal(capKg),
		})
	}
	if len(res.Rows) == 0 {
		return res, ErrEmptyCrossLink
	}
	return res, nil
}
