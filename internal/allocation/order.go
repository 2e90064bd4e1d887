package allocation

import (
	"regexp"
	"strconv"

	"CavaPgc/internal/crosslink"
)

// Order is the processing order deliveries of a key are walked in.
type Order int

const (
	// ByDate walks by delivery date, undated rows last, then ticket.
	ByDate Order = iota
	// ByTicket walks by parsed ticket identifier.
	ByTicket
)

func (o Order) String() string {
	switch o {
	case ByDate:
		return "date"
	case ByTicket:
		return "ticket"
	}
	return "order(" + strconv.Itoa(int(o)) + ")"
}

// Ticket is a parsed ticket identifier such as "12A".
type Ticket struct {
	Number uint64
	Suffix string
}

var reTicket = regexp.MustCompile(`^\s*(\d+)\s*([A-Za-z]*)\s*$`)

// ParseTicket splits a ticket into its numeric prefix and alphabetic suffix.
// Anything else parses as (0, original text).
func ParseTicket(s string) Ticket {
	m := reTicket.FindStringSubmatch(s)
	if m == nil {
		return Ticket{Suffix: s}
	}
	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return Ticket{Suffix: s}
	}
	return Ticket{Number: n, Suffix: m[2]}
}

// Compare returns -1, 0 or 1.
func (t Ticket) Compare(o Ticket) int {
	switch {
	case t.Number < o.Number:
		return -1
	case t.Number > o.Number:
		return 1
	case t.Suffix < o.Suffix:
		return -1
	case t.Suffix > o.Suffix:
		return 1
	}
	return 0
}

// Less is the total order between two deliveries. The source line breaks
// every remaining tie so the walk is reproducible.
func (o Order) Less(a, b crosslink.Linked) bool {
	if o == ByDate {
		if a.HasDate != b.HasDate {
			return a.HasDate
		}
		if a.HasDate && !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
	}
	if c := ParseTicket(a.Ticket).Compare(ParseTicket(b.Ticket)); c != 0 {
		return c < 0
	}
	return a.Line < b.Line
}
