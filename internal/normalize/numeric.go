package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Decimal coerces a spreadsheet cell to a number. Both "2,5" and "2.5" are
// accepted; when both separators appear the last one is the decimal mark.
// ok is false for blanks and anything that is not a number.
func Decimal(s string) (decimal.Decimal, bool) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" || s == "-" {
		return decimal.Zero, false
	}
	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, false
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// DecimalOr returns the coerced value or def when the cell is not numeric.
func DecimalOr(s string, def decimal.Decimal) decimal.Decimal {
	if d, ok := Decimal(s); ok {
		return d
	}
	return def
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}
