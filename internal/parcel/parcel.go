package parcel

import (
	"github.com/shopspring/decimal"

	"CavaPgc/internal/normalize"
	"CavaPgc/internal/sheet"
)

// SheetName is the preferred worksheet of the parcel registry.
const SheetName = "Parcelas"

// Logical column names.
const (
	ColTaxID        = "NIF"
	ColVariety      = "Variedad"
	ColParcelRef    = "RefParcela"
	ColSurface      = "Superficie"
	ColSegment      = "Segmento"
	ColFirstName    = "Nombre"
	ColLastName     = "Apellidos"
	ColYear         = "Ejercicio"
	ColOwnership    = "PorcentajeTitularidad"
	ColRegistration = "NRegistro"
	ColStatus       = "Estado"
)

// NominalHeader is the header the registry export carries when it has no
// leading metadata rows.
var NominalHeader = []string{
	ColYear, ColParcelRef, ColRegistration, ColTaxID, ColLastName, ColFirstName,
	ColVariety, ColSurface, ColOwnership, ColStatus, ColSegment,
}

// Columns is the ordered alias table for the registry.
var Columns = []normalize.ColumnSpec{
	{Name: ColTaxID, Aliases: []string{"NIF"}},
	{Name: ColVariety, Aliases: []string{"Variedad", "Varietat"}},
	{Name: ColParcelRef, Aliases: []string{"RefParcela", "Ref_Parcela", "Ref Parcela", "origenParcela", "origenParcella"}},
	{Name: ColSurface, Aliases: []string{"Superficie", "Sup", "Hectáreas", "Hectareas", "ha"}, Required: true},
	{Name: ColSegment, Aliases: []string{"Segmento"}},
	{Name: ColFirstName, Aliases: []string{"Nombre"}},
	{Name: ColLastName, Aliases: []string{"Apellidos"}},
	{Name: ColYear, Aliases: []string{"Ejercicio", "Any", "Año"}},
	{Name: ColOwnership, Aliases: []string{"PorcentajeTitularidad", "Porcentaje Titularidad", "PorcTitularidad"}},
	{Name: ColRegistration, Aliases: []string{"NRegistro", "Nº Registro", "NºRegistro", "NumRegistro"}},
	{Name: ColStatus, Aliases: []string{"Estado", "Estat", "Status"}},
}

var (
	hundred = decimal.NewFromInt(100)
)

// Parcel is one cleaned registry row.
type Parcel struct {
	Line             int
	Year             string
	ParcelRef        string
	ParcelRefNorm    string
	Registration     string
	TaxID            string
	FirstName        string
	LastName         string
	FullName         string
	Variety          string
	VarietyCode      string
	Surface          decimal.Decimal
	Ownership        decimal.Decimal
	EffectiveSurface decimal.Decimal
	Status           string
	Segment          string
	Key              string
}

// CleanStats counts the rows read and the reason each dropped row was dropped.
type CleanStats struct {
	Read         int
	NotGuarda    int
	NotValidated int
	NoTaxID      int
	BadSurface   int
	Kept         int
}

// Table locates the registry sheet and its header row in wb.
func Table(wb *sheet.Workbook) sheet.Table {
	g := wb.Pick(SheetName)
	return sheet.NewTable(g, sheet.ShiftedHeader(g, NominalHeader, 4, 6))
}

// Clean filters and normalizes registry rows. Segment and status filters
// apply only when the corresponding column exists. A missing surface column
// is returned as *normalize.MissingColumnError.
func Clean(t sheet.Table) ([]Parcel, CleanStats, error) {
	var stats CleanStats
	cols, err := normalize.Resolve("parcels", t.Header, Columns)
	if err != nil {
		return nil, stats, err
	}

	out := make([]Parcel, 0, len(t.Rows))
	for _, r := range t.Rows {
		stats.Read++
		segment := ""
		if cols.Has(ColSegment) {
			raw := cols.Get(r.Cells, ColSegment)
			segment = normalize.Segment(raw)
			if !normalize.IsGuarda(raw) {
				stats.NotGuarda++
				continue
			}
		}
		status := cols.Get(r.Cells, ColStatus)
		if cols.Has(ColStatus) && !normalize.IsValidated(status) {
			stats.NotValidated++
			continue
		}
		taxID := normalize.TaxID(cols.Get(r.Cells, ColTaxID))
		if taxID == "" {
			stats.NoTaxID++
			continue
		}
		surface, ok := normalize.Decimal(cols.Get(r.Cells, ColSurface))
		if !ok {
			stats.BadSurface++
			continue
		}

		p := Parcel{
			Line:         r.Line,
			Year:         year(cols.Get(r.Cells, ColYear)),
			ParcelRef:    cols.Get(r.Cells, ColParcelRef),
			Registration: cols.Get(r.Cells, ColRegistration),
			TaxID:        taxID,
			FirstName:    cols.Get(r.Cells, ColFirstName),
			LastName:     cols.Get(r.Cells, ColLastName),
			FullName:     "N/A",
			Variety:      normalize.Variety(cols.Get(r.Cells, ColVariety)),
			Surface:      surface,
			Ownership:    hundred,
			Status:       normalize.Text(status),
			Segment:      segment,
		}
		if cols.Has(ColOwnership) {
			p.Ownership = normalize.Clamp(normalize.DecimalOr(cols.Get(r.Cells, ColOwnership), hundred), decimal.Zero, hundred)
		}
		p.EffectiveSurface = p.Surface.Mul(p.Ownership).Div(hundred)
		if cols.Has(ColFirstName) && cols.Has(ColLastName) {
			p.FullName = joinName(p.FirstName, p.LastName)
		}
		p.VarietyCode = normalize.VarietyCode(p.Variety)
		p.Key = normalize.BuildKey(p.Variety, p.TaxID)
		p.ParcelRefNorm = normalize.ParcelRef(p.ParcelRef)

		out = append(out, p)
		stats.Kept++
	}
	return out, stats, nil
}

// year renders numeric fiscal years without a fractional part ("2024.0" -> "2024").
func year(s string) string {
	if d, ok := normalize.Decimal(s); ok {
		return d.Truncate(0).String()
	}
	return s
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}
