package delivery

import (
	"regexp"

	"CavaPgc/internal/normalize"
	"CavaPgc/internal/sheet"
)

// RVC is the Catalan ticket-weighing export. Only DO Cava (dos == CV) rows
// that are not Guarda Superior and not incidental IN-01 weighings count.
type RVC struct{}

const (
	colDOS            = "dos"
	colGuardaSuperior = "cavaGuardaSuperior"
	colWeighing       = "numPesada"
)

var rvcTokens = []string{
	"DOS", "CAVAGUARDASUPERIOR", "NUMPESADA", "KGTOTALS", "NOMCELLER", "VARIETATDESC",
	"NIFLLIURADOR", "NOMLLIURADOR", "NIPD", "DATAPESADA", "ORIGENPARCELLA", "TIQUETBASCULA",
}

var rvcColumns = []normalize.ColumnSpec{
	{Name: colDOS, Aliases: []string{"dos"}},
	{Name: colGuardaSuperior, Aliases: []string{"cavaGuardaSuperior", "cava_guarda_superior"}},
	{Name: colWeighing, Aliases: []string{"numPesada", "num_pesada"}},
	{Name: ColKg, Aliases: []string{"kgTotals", "kg_totals", "kgTotal", "kg"}, Required: true},
	{Name: ColCellar, Aliases: []string{"nomCeller", "celler", "nombreCeller", "nom_celler"}},
	{Name: ColVariety, Aliases: []string{"varietatDesc", "variedad", "varietat", "variety"}},
	{Name: ColTaxID, Aliases: []string{"nifLliurador", "nif lliurador", "nif_entrega", "nifProveedor"}},
	{Name: ColGrowerName, Aliases: []string{"nomLliurador", "nom lliurador", "nombreLliurador", "proveedor", "nombreProveedor"}},
	{Name: ColGrowerCode, Aliases: []string{"nipd", "nip", "idProveedor"}},
	{Name: ColDate, Aliases: []string{"dataPesada", "fechaPesada", "data_pesada", "fecha"}},
	{Name: ColParcel, Aliases: []string{"origenParcella", "origenParcela", "origen parcela", "origen_parcela"}},
	{Name: ColScaleTicket, Aliases: []string{"tiquetBascula", "tiquetBascu", "tiquet_bascu", "ticketBascula", "tiquetBascul"}},
	{
		Name:    ColIncident,
		Aliases: []string{"motiuPesadaIncidental", "motivoPesadaIncidental", "motiu incidental", "motivo incidental"},
		Terms:   [][]string{{"MOTIU", "INCID"}, {"MOTIVO", "INCID"}},
	},
	{Name: ColFacility, Aliases: []string{"instalacio", "instal·lacio", "instalacion"}},
	{Name: ColSegment, Aliases: []string{"segment", "segmento"}},
	{Name: ColStatus, Aliases: []string{"estat", "estado"}},
}

var (
	yesValues    = map[string]bool{"SI": true, "YES": true, "Y": true, "1": true, "TRUE": true}
	reIncidental = regexp.MustCompile(`^\s*IN[-\s]*0*1\b`)
)

func (RVC) Name() string        { return "rvc" }
func (RVC) TicketOrdered() bool { return true }
func (RVC) SiteColumn() string  { return ColGrowerCode }

func (RVC) Table(wb *sheet.Workbook) sheet.Table {
	g := wb.Pick("")
	return sheet.NewTable(g, sheet.ScoredHeader(g, rvcTokens, 30, 4))
}

func (s RVC) Clean(t sheet.Table) ([]Delivery, CleanStats, error) {
	var stats CleanStats
	cols, err := normalize.Resolve(s.Name(), t.Header, rvcColumns)
	if err != nil {
		return nil, stats, err
	}
	out := make([]Delivery, 0, len(t.Rows))
	for _, r := range t.Rows {
		stats.Read++
		if cols.Has(colDOS) && normalize.Text(cols.Get(r.Cells, colDOS)) != "CV" {
			stats.Excluded++
			continue
		}
		if yesValues[normalize.Text(cols.Get(r.Cells, colGuardaSuperior))] {
			stats.Excluded++
			continue
		}
		incident := cols.Get(r.Cells, ColIncident)
		if reIncidental.MatchString(normalize.Text(incident)) {
			stats.Excluded++
			continue
		}

		d := Delivery{
			Source:      s.Name(),
			Line:        r.Line,
			Incident:    incident,
			ScaleTicket: cols.Get(r.Cells, ColScaleTicket),
			Ticket:      cols.Get(r.Cells, colWeighing),
		}
		if d.Ticket == "" {
			d.Ticket = d.ScaleTicket
		}
		if !finish(&d, cols, r.Cells, &stats) {
			continue
		}
		out = append(out, d)
		stats.Kept++
	}
	return out, stats, nil
}
