// Package correction loads the IT04 correction ledger and applies it to the
// yield ledger.
package correction

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"CavaPgc/internal/normalize"
	"CavaPgc/internal/parcel"
	"CavaPgc/internal/sheet"
)

const (
	ColKey = "vartip"
	ColKg  = "kg_a_restar"
)

var Columns = []normalize.ColumnSpec{
	{Name: ColKey, Aliases: []string{"vartip"}, Required: true},
	{Name: ColKg, Aliases: []string{"kg_a_restar", "kgarestar", "kg_restar"}, Required: true},
}

// Entry is the total correction for one key.
type Entry struct {
	Key          string
	KgToSubtract decimal.Decimal
}

// Adjusted is the yield of a key after subtracting its correction.
type Adjusted struct {
	Key           string
	TotalYield    decimal.Decimal
	Correction    decimal.Decimal
	AdjustedYield decimal.Decimal
}

// Load sums kg-to-subtract per key. Non-numeric amounts count as zero and
// negative amounts are clamped to zero before summing. Entries come back in
// key order.
func Load(t sheet.Table) ([]Entry, error) {
	cols, err := normalize.Resolve("it04", t.Header, Columns)
	if err != nil {
		return nil, err
	}
	sums := make(map[string]decimal.Decimal)
	for _, r := range t.Rows {
		key := strings.ToUpper(cols.Get(r.Cells, ColKey))
		kg := normalize.DecimalOr(cols.Get(r.Cells, ColKg), decimal.Zero)
		if kg.IsNegative() {
			kg = decimal.Zero
		}
		sums[key] = sums[key].Add(kg)
	}
	out := make([]Entry, 0, len(sums))
	for k, v := range sums {
		out = append(out, Entry{Key: k, KgToSubtract: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Adjust totals the ledger per key across fiscal years and subtracts the
// matching correction, never going below zero. Keys without a correction
// keep their total. The result is in key order.
func Adjust(ledger []parcel.YieldEntry, corrections []Entry) []Adjusted {
	byKey := make(map[string]decimal.Decimal, len(corrections))
	for _, c := range corrections {
		byKey[c.Key] = byKey[c.Key].Add(c.KgToSubtract)
	}
	totals := parcel.TotalsByKey(ledger)
	out := make([]Adjusted, 0, len(totals))
	for key, total := range totals {
		corr := byKey[key]
		adj := total.Sub(corr)
		if adj.IsNegative() {
			adj = decimal.Zero
		}
		out = append(out, Adjusted{Key: key, TotalYield: total, Correction: corr, AdjustedYield: adj})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Caps indexes adjusted yields by key.
func Caps(adjusted []Adjusted) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(adjusted))
	for _, a := range adjusted {
		out[a.Key] = a.AdjustedYield
	}
	return out
}
