package parcel

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// YieldEntry is one row of the maximum-quota table, per key or per
// (fiscal year, key).
type YieldEntry struct {
	Year        string
	TaxID       string
	Name        string
	Key         string
	Segment     string
	Variety     string
	VarietyCode string
	Hectares    decimal.Decimal
	MaxYield    decimal.Decimal
}

// BuildYieldLedger sums effective surface per key and multiplies it by rate
// kilograms per hectare. With groupByYear the grouping is (year, key) as
// long as at least one parcel carries a fiscal year. Descriptive fields come
// from the first parcel of each group that has them.
func BuildYieldLedger(parcels []Parcel, rate decimal.Decimal, groupByYear bool) []YieldEntry {
	byYear := false
	if groupByYear {
		for _, p := range parcels {
			if p.Year != "" {
				byYear = true
				break
			}
		}
	}

	type group struct {
		entry   YieldEntry
		surface decimal.Decimal
	}
	groups := make(map[[2]string]*group)
	var order [][2]string
	for _, p := range parcels {
		id := [2]string{"", p.Key}
		if byYear {
			id[0] = p.Year
		}
		g, ok := groups[id]
		if !ok {
			g = &group{entry: YieldEntry{Year: id[0], Key: p.Key}}
			groups[id] = g
			order = append(order, id)
		}
		g.surface = g.surface.Add(p.EffectiveSurface)
		e := &g.entry
		firstNonEmpty(&e.TaxID, p.TaxID)
		firstNonEmpty(&e.Name, p.FullName)
		firstNonEmpty(&e.Segment, p.Segment)
		firstNonEmpty(&e.Variety, p.Variety)
		firstNonEmpty(&e.VarietyCode, p.VarietyCode)
	}

	out := make([]YieldEntry, 0, len(order))
	for _, id := range order {
		g := groups[id]
		g.entry.Hectares = g.surface.Round(4)
		g.entry.MaxYield = g.surface.Mul(rate).Round(2)
		out = append(out, g.entry)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if byYear && a.Year != b.Year {
			return yearLess(a.Year, b.Year)
		}
		if c := a.MaxYield.Cmp(b.MaxYield); c != 0 {
			return c > 0
		}
		return a.Key < b.Key
	})
	return out
}

// TotalsByKey sums MaxYield across fiscal years for every key.
func TotalsByKey(ledger []YieldEntry) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(ledger))
	for _, e := range ledger {
		out[e.Key] = out[e.Key].Add(e.MaxYield)
	}
	return out
}

// Producers returns the set of tax IDs owning at least one ledger key.
func Producers(ledger []YieldEntry) map[string]bool {
	out := make(map[string]bool, len(ledger))
	for _, e := range ledger {
		if e.TaxID != "" {
			out[e.TaxID] = true
		}
	}
	return out
}

// ParcelPair is a (key, normalized parcel reference) pair of the registry.
type ParcelPair struct {
	Key       string
	ParcelRef string
}

// Pairs returns the distinct (key, normalized parcel reference) pairs.
func Pairs(parcels []Parcel) map[ParcelPair]bool {
	out := make(map[ParcelPair]bool, len(parcels))
	for _, p := range parcels {
		out[ParcelPair{Key: p.Key, ParcelRef: p.ParcelRefNorm}] = true
	}
	return out
}

func firstNonEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

// years sort numerically when both parse, blanks last
func yearLess(a, b string) bool {
	if a == "" || b == "" {
		return b == "" && a != ""
	}
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
