// Package delivery cleans weighing ledgers exported by the regional
// platforms into a common Delivery shape.
package delivery

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"CavaPgc/internal/normalize"
	"CavaPgc/internal/sheet"
)

// Delivery is one weighing event of a grower at a cellar.
type Delivery struct {
	Source        string
	Line          int
	Date          time.Time
	HasDate       bool
	DateRaw       string
	Ticket        string
	Cellar        string
	CellarTaxID   string
	Facility      string
	TaxID         string
	GrowerName    string
	GrowerCode    string
	Variety       string
	Segment       string
	ParcelRef     string
	ParcelRefNorm string
	Kg            decimal.Decimal
	Status        string
	Incident      string
	ScaleTicket   string
}

// CleanStats counts rows read, kept and dropped per reason.
type CleanStats struct {
	Read         int
	Excluded     int
	NotGuarda    int
	NotValidated int
	NoTaxID      int
	BadKg        int
	Kept         int
}

// Source is one delivery export format.
type Source interface {
	Name() string
	// Table locates the data sheet and its header row.
	Table(wb *sheet.Workbook) sheet.Table
	// Clean filters and normalizes rows. A missing kilograms column is
	// returned as *normalize.MissingColumnError.
	Clean(t sheet.Table) ([]Delivery, CleanStats, error)
	// TicketOrdered reports whether the platform's own ledger is kept in
	// ticket order rather than by date.
	TicketOrdered() bool
	// SiteColumn is the column that splits a cellar in the cellar
	// summaries: ColFacility or ColGrowerCode.
	SiteColumn() string
}

var sources = map[string]Source{
	"cavanet": Cavanet{},
	"rvc":     RVC{},
}

// Lookup returns the source registered under name.
func Lookup(name string) (Source, error) {
	s, ok := sources[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown delivery source %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Names lists registered source names in sorted order.
func Names() []string {
	out := make([]string, 0, len(sources))
	for n := range sources {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Logical column names shared by every source.
const (
	ColDate        = "Fecha"
	ColTicket      = "Tiquet"
	ColCellar      = "Bodega"
	ColCellarTaxID = "NifBodega"
	ColFacility    = "Instalacion"
	ColTaxID       = "Dni"
	ColGrowerName  = "NombreViticultor"
	ColGrowerCode  = "nipd"
	ColVariety     = "Variedad"
	ColSegment     = "Segmento"
	ColParcel      = "Parcela"
	ColKg          = "kg"
	ColStatus      = "Estado"
	ColIncident    = "motiuPesadaIncidental"
	ColScaleTicket = "tiquetBascula"
)

// NoGrowerCode stands in for a blank nipd when grouping by grower.
const NoGrowerCode = "SIN_NIPD"

// Site returns the delivery's value for a SiteColumn.
func (d Delivery) Site(col string) string {
	if col == ColGrowerCode {
		if code := strings.TrimSpace(d.GrowerCode); code != "" {
			return code
		}
		return NoGrowerCode
	}
	return d.Facility
}

// finish applies the steps shared by every source once source-specific
// filters have run: segment and status filters when the columns exist,
// identifier normalization and kilogram coercion. ok is false when the row
// is dropped; the matching counter in stats is incremented.
func finish(d *Delivery, cols normalize.Columns, cells []string, stats *CleanStats) bool {
	if cols.Has(ColSegment) {
		raw := cols.Get(cells, ColSegment)
		d.Segment = normalize.Segment(raw)
		if !normalize.IsGuarda(raw) {
			stats.NotGuarda++
			return false
		}
	}
	if cols.Has(ColStatus) {
		d.Status = normalize.Text(cols.Get(cells, ColStatus))
		if !normalize.IsValidDelivery(d.Status) {
			stats.NotValidated++
			return false
		}
	}
	d.TaxID = normalize.TaxID(cols.Get(cells, ColTaxID))
	if d.TaxID == "" {
		stats.NoTaxID++
		return false
	}
	d.Variety = normalize.Variety(cols.Get(cells, ColVariety))
	d.ParcelRef = cols.Get(cells, ColParcel)
	d.ParcelRefNorm = normalize.ParcelRef(d.ParcelRef)

	kg, ok := normalize.Decimal(cols.Get(cells, ColKg))
	if !ok {
		stats.BadKg++
		return false
	}
	if kg.IsNegative() {
		kg = decimal.Zero
	}
	d.Kg = kg

	d.DateRaw = cols.Get(cells, ColDate)
	d.Date, d.HasDate = sheet.ParseDate(d.DateRaw)
	d.Cellar = cols.Get(cells, ColCellar)
	d.CellarTaxID = normalize.TaxID(cols.Get(cells, ColCellarTaxID))
	d.Facility = cols.Get(cells, ColFacility)
	d.GrowerName = cols.Get(cells, ColGrowerName)
	d.GrowerCode = cols.Get(cells, ColGrowerCode)
	return true
}
