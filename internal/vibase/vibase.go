// Package vibase reduces a base wine movements export to the latest
// accumulated stock per facility, wine type, segment and zone.
package vibase

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"CavaPgc/internal/normalize"
	"CavaPgc/internal/sheet"
	"CavaPgc/internal/workbook"
)

const (
	SheetName = "Acumulado Vi Base"

	ColDate        = "Fecha"
	ColCompany     = "Empresa"
	ColFacility    = "Instalacion"
	ColDescription = "Descripcion"
	ColWineType    = "TipoVinoBase"
	ColSegment     = "Segmento"
	ColZone        = "Zona"
	ColSubZone     = "SubZona"
	ColAccumulated = "Acumulado"

	// headerFallbackRow is where the header sits in exports that carry a
	// title block.
	headerFallbackRow = 6
)

var columns = []normalize.ColumnSpec{
	{Name: ColFacility, Aliases: []string{ColFacility, "Instalación"}, Required: true},
	{Name: ColDate, Aliases: []string{ColDate}, Required: true},
	{Name: ColWineType, Aliases: []string{ColWineType, "Tipo Vino Base"}, Required: true},
	{Name: ColSegment, Aliases: []string{ColSegment}, Required: true},
	{Name: ColSubZone, Aliases: []string{ColSubZone, "Sub Zona"}, Required: true},
	{Name: ColZone, Aliases: []string{ColZone}, Required: true},
	{Name: ColAccumulated, Aliases: []string{ColAccumulated}, Required: true},
	{Name: ColCompany, Aliases: []string{ColCompany}},
	{Name: ColDescription, Aliases: []string{ColDescription, "Descripción"}},
}

// facilityFixes maps facilities whose municipality itself contains a dash.
var facilityFixes = map[string]string{
	"CELLER JOSEP PINOL, S.L.-RUBI": "CELLER JOSEP PINOL, S.L.-FONT-RUBI",
	"U MES U FAN TRES, S.L.-RUBI":   "U MES U FAN TRES, S.L.-FONT-RUBI",
}

var reDashSpaces = regexp.MustCompile(`\s*-\s*`)

// Movement is one cleaned row of the export.
type Movement struct {
	Line        int
	Date        time.Time
	HasDate     bool
	Company     string
	Facility    string
	Description string
	WineType    string
	Segment     string
	Zone        string
	SubZone     string
	Accumulated string
}

type groupKey struct {
	Facility, WineType, Segment, Zone, SubZone string
}

func (m Movement) key() groupKey {
	return groupKey{m.Facility, m.WineType, m.Segment, m.Zone, m.SubZone}
}

// Facility keeps NAME-MUNICIPALITY from a dash separated facility label,
// taking the first and last non-empty parts.
func Facility(s string) string {
	var parts []string
	for _, p := range strings.Split(s, "-") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	var out string
	if len(parts) >= 2 {
		out = normalize.Text(parts[0]) + "-" + normalize.Text(parts[len(parts)-1])
	} else {
		out = normalize.Text(s)
	}
	if fixed, ok := facilityFixes[out]; ok {
		return fixed
	}
	return out
}

// Description collapses the spacing around dashes and drops a leading dash.
func Description(s string) string {
	s = reDashSpaces.ReplaceAllString(strings.TrimSpace(s), "-")
	s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	return normalize.Text(s)
}

// Table uses row 0 as header when it has an Instalacion cell, otherwise the
// row below the title block.
func Table(wb *sheet.Workbook) sheet.Table {
	g := wb.Pick("")
	if len(g.Rows) > 0 {
		for _, c := range g.Rows[0] {
			if normalize.Text(c) == normalize.Text(ColFacility) {
				return sheet.NewTable(g, 0)
			}
		}
	}
	return sheet.NewTable(g, headerFallbackRow)
}

// Clean reads every row. Dates are day-first; unparseable dates leave the
// row undated.
func Clean(t sheet.Table) ([]Movement, error) {
	cols, err := normalize.Resolve("vi base", t.Header, columns)
	if err != nil {
		return nil, err
	}
	out := make([]Movement, 0, len(t.Rows))
	for _, r := range t.Rows {
		m := Movement{
			Line:        r.Line,
			Company:     strings.TrimSpace(cols.Get(r.Cells, ColCompany)),
			Facility:    Facility(cols.Get(r.Cells, ColFacility)),
			Description: Description(cols.Get(r.Cells, ColDescription)),
			WineType:    strings.TrimSpace(cols.Get(r.Cells, ColWineType)),
			Segment:     strings.TrimSpace(cols.Get(r.Cells, ColSegment)),
			Zone:        strings.TrimSpace(cols.Get(r.Cells, ColZone)),
			SubZone:     strings.TrimSpace(cols.Get(r.Cells, ColSubZone)),
			Accumulated: strings.TrimSpace(cols.Get(r.Cells, ColAccumulated)),
		}
		m.Date, m.HasDate = sheet.ParseDate(cols.Get(r.Cells, ColDate))
		out = append(out, m)
	}
	return out, nil
}

// newer reports whether a should replace b as the group's latest row.
// Undated rows lose to dated ones; ties keep the earlier line.
func newer(a, b Movement) bool {
	if a.HasDate != b.HasDate {
		return a.HasDate
	}
	if a.HasDate && !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	return a.Line < b.Line
}

// Latest keeps the most recent movement of each group, sorted by group.
func Latest(movements []Movement) []Movement {
	latest := make(map[groupKey]Movement)
	for _, m := range movements {
		cur, ok := latest[m.key()]
		if !ok || newer(m, cur) {
			latest[m.key()] = m
		}
	}
	out := make([]Movement, 0, len(latest))
	for _, m := range latest {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].key(), out[j].key()
		if a.Facility != b.Facility {
			return a.Facility < b.Facility
		}
		if a.WineType != b.WineType {
			return a.WineType < b.WineType
		}
		if a.Segment != b.Segment {
			return a.Segment < b.Segment
		}
		if a.Zone != b.Zone {
			return a.Zone < b.Zone
		}
		return a.SubZone < b.SubZone
	})
	return out
}

// Process runs the whole report on a workbook.
func Process(wb *sheet.Workbook) ([]Movement, error) {
	movements, err := Clean(Table(wb))
	if err != nil {
		return nil, err
	}
	return Latest(movements), nil
}

// Sheet renders the latest movements. Numeric accumulated values are
// written as numbers.
func Sheet(latest []Movement) workbook.Sheet {
	s := workbook.Sheet{Name: SheetName, Header: []string{
		ColDate, ColCompany, ColFacility, ColWineType, ColSegment, ColZone, ColSubZone, ColAccumulated,
	}}
	for _, m := range latest {
		var date, acc interface{}
		if m.HasDate {
			date = m.Date
		}
		acc = m.Accumulated
		if d, ok := normalize.Decimal(m.Accumulated); ok {
			acc = d
		}
		s.Rows = append(s.Rows, []interface{}{date, m.Company, m.Facility, m.WineType, m.Segment, m.Zone, m.SubZone, acc})
	}
	return s
}

// Total sums the numeric accumulated values.
func Total(latest []Movement) decimal.Decimal {
	var total decimal.Decimal
	for _, m := range latest {
		if d, ok := normalize.Decimal(m.Accumulated); ok {
			total = total.Add(d)
		}
	}
	return total
}
