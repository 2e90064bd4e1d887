package delivery

import (
	"CavaPgc/internal/normalize"
	"CavaPgc/internal/sheet"
)

// Cavanet is the regional (ESP) weighing export. Its header row is located
// by scoring the first rows against the expected header tokens.
type Cavanet struct{}

var cavanetTokens = []string{
	"FECHA", "TIQUET", "BODEGA", "NIFBODEGA", "INSTALACION", "DNI",
	"NOMBREVITICULTOR", "VARIEDAD", "SEGMENTO", "PARCELA", "KG", "ESTADO",
}

var cavanetColumns = []normalize.ColumnSpec{
	{Name: ColDate, Aliases: []string{"Fecha", "Data"}, Terms: [][]string{{"FECH"}}},
	{Name: ColTicket, Aliases: []string{"Tiquet", "Ticket", "TiquetBascula"}},
	{Name: ColCellarTaxID, Aliases: []string{"NifBodega", "NIF Bodega", "NIF_Bodega"}},
	{Name: ColCellar, Aliases: []string{"Bodega", "nomCeller", "Celler"}},
	{Name: ColFacility, Aliases: []string{"Instalacion", "Instal·lacio", "Instalacio"}},
	{Name: ColTaxID, Aliases: []string{"Dni", "NIF"}},
	{Name: ColGrowerName, Aliases: []string{"NombreViticultor", "NomViticultor", "Proveedor", "nomLliurador"}},
	{Name: ColVariety, Aliases: []string{"Variedad", "Varietat"}},
	{Name: ColSegment, Aliases: []string{"Segmento"}},
	{Name: ColParcel, Aliases: []string{"Parcela", "Parcella"}},
	{Name: ColKg, Aliases: []string{"kg", "Kgs", "Kilos", "Peso"}, Required: true},
	{Name: ColStatus, Aliases: []string{"Estado", "Estat"}},
}

func (Cavanet) Name() string        { return "cavanet" }
func (Cavanet) TicketOrdered() bool { return false }
func (Cavanet) SiteColumn() string  { return ColFacility }

func (Cavanet) Table(wb *sheet.Workbook) sheet.Table {
	g := wb.Pick("", "PESAD", "BODEGA", "DETALLE")
	return sheet.NewTable(g, sheet.ScoredHeader(g, cavanetTokens, 30, 4))
}

func (c Cavanet) Clean(t sheet.Table) ([]Delivery, CleanStats, error) {
	var stats CleanStats
	cols, err := normalize.Resolve(c.Name(), t.Header, cavanetColumns)
	if err != nil {
		return nil, stats, err
	}
	out := make([]Delivery, 0, len(t.Rows))
	for _, r := range t.Rows {
		stats.Read++
		d := Delivery{Source: c.Name(), Line: r.Line, Ticket: cols.Get(r.Cells, ColTicket)}
		if !finish(&d, cols, r.Cells, &stats) {
			continue
		}
		d.ScaleTicket = d.Ticket
		out = append(out, d)
		stats.Kept++
	}
	return out, stats, nil
}
