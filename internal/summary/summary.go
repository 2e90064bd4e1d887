// Package summary rolls allocated ledgers up per key and per cellar.
package summary

import (
	"sort"

	"github.com/shopspring/decimal"

	"CavaPgc/internal/allocation"
)

var hundred = decimal.NewFromInt(100)

// KeyTotals is the per-key rollup.
type KeyTotals struct {
	Key      string              `json:"vartip"`
	Variety  string              `json:"variety"`
	Quota    decimal.Decimal     `json:"kg_quota"`
	Excess   decimal.Decimal     `json:"kg_excess"`
	Kg       decimal.Decimal     `json:"kg"`
	Count    int                 `json:"deliveries"`
	Cap      decimal.NullDecimal `json:"max_yield"`
	UsagePct decimal.NullDecimal `json:"usage_pct"`
}

// ByKey totals every key. UsagePct is quota / cap * 100 and is null when
// the cap is missing or not positive. Sorted by excess descending.
func ByKey(entries []allocation.Entry) []KeyTotals {
	idx := make(map[string]int)
	var out []KeyTotals
	for _, e := range entries {
		i, ok := idx[e.Key]
		if !ok {
			i = len(out)
			idx[e.Key] = i
			out = append(out, KeyTotals{Key: e.Key, Variety: e.Variety, Cap: e.Cap})
		}
		t := &out[i]
		t.Quota = t.Quota.Add(e.KgQuota)
		t.Excess = t.Excess.Add(e.KgExcess)
		t.Kg = t.Kg.Add(e.Kg)
		t.Count++
		if !t.Cap.Valid && e.Cap.Valid {
			t.Cap = e.Cap
		}
	}
	for i := range out {
		t := &out[i]
		if t.Cap.Valid && t.Cap.Decimal.IsPositive() {
			t.UsagePct = decimal.NewNullDecimal(t.Quota.Div(t.Cap.Decimal).Mul(hundred).Round(2))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Excess.Cmp(out[j].Excess); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// CellarTotals is the rollup per receiving cellar and site. The site is
// the facility or the grower's nipd, depending on the source.
type CellarTotals struct {
	Cellar string          `json:"cellar"`
	Site   string          `json:"site"`
	Quota  decimal.Decimal `json:"kg_quota"`
	Excess decimal.Decimal `json:"kg_excess"`
	Kg     decimal.Decimal `json:"kg"`
	Count  int             `json:"deliveries"`
}

// ByCellar totals every (cellar, site) where site is the delivery's value
// for siteCol, rounded to 2 decimals, sorted by cellar then excess
// descending.
func ByCellar(entries []allocation.Entry, siteCol string) []CellarTotals {
	idx := make(map[[2]string]int)
	var out []CellarTotals
	for _, e := range entries {
		id := [2]string{e.Cellar, e.Site(siteCol)}
		i, ok := idx[id]
		if !ok {
			i = len(out)
			idx[id] = i
			out = append(out, CellarTotals{Cellar: id[0], Site: id[1]})
		}
		t := &out[i]
		t.Quota = t.Quota.Add(e.KgQuota)
		t.Excess = t.Excess.Add(e.KgExcess)
		t.Kg = t.Kg.Add(e.Kg)
		t.Count++
	}
	for i := range out {
		out[i].Quota = out[i].Quota.Round(2)
		out[i].Excess = out[i].Excess.Round(2)
		out[i].Kg = out[i].Kg.Round(2)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Cellar != b.Cellar {
			return a.Cellar < b.Cellar
		}
		if c := a.Excess.Cmp(b.Excess); c != 0 {
			return c > 0
		}
		return a.Site < b.Site
	})
	return out
}

// FirstExcess locates, for a key with excess, the first delivery that
// produced any and how much arrived from then on.
type FirstExcess struct {
	Key             string          `json:"vartip"`
	Position        int             `json:"first_excess_position"`
	Ticket          string          `json:"first_excess_ticket"`
	ExcessRows      int             `json:"excess_deliveries"`
	ExcessKg        decimal.Decimal `json:"kg_excess"`
	FromFirstExcess int             `json:"deliveries_from_first_excess"`
}

// FirstExcesses reports every key with excess, sorted by excess kg
// descending. Positions are those of the ledger's processing order.
func FirstExcesses(entries []allocation.Entry) []FirstExcess {
	idx := make(map[string]int)
	var out []FirstExcess
	for _, e := range entries {
		if !e.KgExcess.IsPositive() {
			continue
		}
		i, ok := idx[e.Key]
		if !ok {
			i = len(out)
			idx[e.Key] = i
			out = append(out, FirstExcess{Key: e.Key, Position: e.Position, Ticket: e.Ticket})
		}
		f := &out[i]
		if e.Position < f.Position {
			f.Position, f.Ticket = e.Position, e.Ticket
		}
		f.ExcessRows++
		f.ExcessKg = f.ExcessKg.Add(e.KgExcess)
	}
	for _, e := range entries {
		if i, ok := idx[e.Key]; ok && e.Position >= out[i].Position {
			out[i].FromFirstExcess++
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].ExcessKg.Cmp(out[j].ExcessKg); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// ExcessRows returns the entries with any excess, in ledger order.
func ExcessRows(entries []allocation.Entry) []allocation.Entry {
	var out []allocation.Entry
	for _, e := range entries {
		if e.KgExcess.IsPositive() {
			out = append(out, e)
		}
	}
	return out
}

// ExcessBySite returns the entries with excess grouped for reporting to
// each cellar: sorted by cellar, site, date (undated last) and ticket.
func ExcessBySite(entries []allocation.Entry, siteCol string) []allocation.Entry {
	out := ExcessRows(entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Cellar != b.Cellar {
			return a.Cellar < b.Cellar
		}
		if sa, sb := a.Site(siteCol), b.Site(siteCol); sa != sb {
			return sa < sb
		}
		return allocation.ByDate.Less(a.Linked, b.Linked)
	})
	return out
}
