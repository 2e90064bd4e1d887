// Package allocation splits each delivery into the part that counts toward
// its key's quota and the excess, walking the key's deliveries in a chosen
// order with a running accumulator.
package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"CavaPgc/internal/crosslink"
)

// State tags each allocated row.
type State string

const (
	Active     State = "ACTIVE"
	Completed  State = "COMPLETED"
	Exceeded   State = "EXCEEDED"
	Unresolved State = "UNRESOLVED"
)

// toleranceExp is the exponent of the margin that absorbs representation
// noise when comparing against a cap (1e-9).
const toleranceExp = -9

// Tolerance returns the comparison margin used against caps.
func Tolerance() decimal.Decimal {
	return decimal.New(1, toleranceExp)
}

// Entry is a cross-linked delivery with its quota split.
type Entry struct {
	crosslink.Linked
	Position          int
	KgQuota           decimal.Decimal
	KgExcess          decimal.Decimal
	AccumulatedBefore decimal.Decimal
	AccumulatedAfter  decimal.Decimal
	Running           decimal.Decimal
	State             State
}

// Accumulator is the walk state of one key.
type Accumulator struct {
	Accumulated decimal.Decimal
	Running     decimal.Decimal
	Position    int
	Capped      bool
}

// Fold walks ordered deliveries of a single key against capKg starting
// from acc, returning the allocated rows and the final state.
func Fold(ordered []crosslink.Linked, capKg decimal.Decimal, acc Accumulator) ([]Entry, Accumulator) {
	out := make([]Entry, 0, len(ordered))
	tol := Tolerance()
	limit := capKg.Add(tol)
	for _, l := range ordered {
		acc.Position++
		acc.Running = acc.Running.Add(l.Kg)
		e := Entry{
			Linked:            l,
			Position:          acc.Position,
			Running:           acc.Running,
			AccumulatedBefore: acc.Accumulated,
			KgQuota:           decimal.Zero,
			KgExcess:          l.Kg,
			State:             Exceeded,
		}
		if !acc.Capped {
			next := acc.Accumulated.Add(l.Kg)
			if next.LessThanOrEqual(limit) {
				e.KgQuota, e.KgExcess = l.Kg, decimal.Zero
				e.State = Active
				acc.Accumulated = next
				if next.Sub(capKg).Abs().LessThan(tol) {
					e.State = Completed
					acc.Capped = true
				}
			} else {
				room := capKg.Sub(acc.Accumulated)
				if room.IsNegative() {
					room = decimal.Zero
				}
				e.KgQuota, e.KgExcess = room, l.Kg.Sub(room)
				acc.Accumulated = capKg
				acc.Capped = true
			}
		}
		e.AccumulatedAfter = acc.Accumulated
		out = append(out, e)
	}
	return out, acc
}

// unresolved tags rows of a key without a cap; nothing is allocated.
func unresolved(ordered []crosslink.Linked) []Entry {
	out := make([]Entry, 0, len(ordered))
	running := decimal.Zero
	for i, l := range ordered {
		running = running.Add(l.Kg)
		out = append(out, Entry{
			Linked:            l,
			Position:          i + 1,
			Running:           running,
			KgQuota:           decimal.Zero,
			KgExcess:          decimal.Zero,
			AccumulatedBefore: decimal.Zero,
			AccumulatedAfter:  decimal.Zero,
			State:             Unresolved,
		})
	}
	return out
}

// Ledger is the allocation of every key in one processing order.
type Ledger struct {
	Order   Order
	Entries []Entry
}

// Allocate groups rows by key, walks every key independently in the given
// order and concatenates the results in key order. The cap of a key is the
// first valid cap among its rows.
func Allocate(rows []crosslink.Linked, order Order) Ledger {
	groups := make(map[string][]crosslink.Linked)
	for _, r := range rows {
		groups[r.Key] = append(groups[r.Key], r)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ledger := Ledger{Order: order, Entries: make([]Entry, 0, len(rows))}
	for _, k := range keys {
		g := groups[k]
		sort.SliceStable(g, func(i, j int) bool { return order.Less(g[i], g[j]) })

		capKg, ok := firstCap(g)
		if !ok {
			ledger.Entries = append(ledger.Entries, unresolved(g)...)
			continue
		}
		entries, _ := Fold(g, capKg, Accumulator{})
		ledger.Entries = append(ledger.Entries, entries...)
	}
	return ledger
}

func firstCap(rows []crosslink.Linked) (decimal.Decimal, bool) {
	for _, r := range rows {
		if r.Cap.Valid {
			return r.Cap.Decimal, true
		}
	}
	return decimal.Zero, false
}

// Divergent returns, in key order, the keys where at least one delivery
// gets a different excess in the two ledgers. Rows are matched by source
// line. Totals per key never differ; which deliveries carry the excess can.
func Divergent(a, b Ledger) []string {
	type rowID struct {
		key  string
		line int
	}
	excess := make(map[rowID]decimal.Decimal, len(a.Entries))
	for _, e := range a.Entries {
		excess[rowID{e.Key, e.Line}] = e.KgExcess
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range b.Entries {
		if seen[e.Key] {
			continue
		}
		if v, ok := excess[rowID{e.Key, e.Line}]; !ok || !v.Equal(e.KgExcess) {
			seen[e.Key] = true
			out = append(out, e.Key)
		}
	}
	sort.Strings(out)
	return out
}
