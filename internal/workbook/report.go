package workbook

import (
	"CavaPgc/internal/allocation"
	"CavaPgc/internal/correction"
	"CavaPgc/internal/delivery"
	"CavaPgc/internal/parcel"
	"CavaPgc/internal/summary"
)

// Output sheet names.
const (
	SheetDetail           = "VARTIP_Detalle"
	SheetDetailTicket     = "VARTIP_Detalle_ticket"
	SheetProcessed        = "Pesadas_Procesadas"
	SheetCellars          = "Resumen_Bodegas"
	SheetKeys             = "Resumen_VARTIPs"
	SheetExcess           = "Control_Excesos_PGC"
	SheetExcessByKey      = "PGC_por_VARTIP"
	SheetFirstExcess      = "PGC_Resumen_VARTIP"
	SheetExcessByFacility = "PGC_pesadas_por_Inst"
	SheetExcessByGrower   = "PGC_pesadas_por_NIPD"
	SheetAdjustments      = "IT04_Ajustes"
	SheetCorrectionsInput = "IT04_Entrada"
	SheetParcelLedger     = "dataframe_final"
	SheetParcelsCleaned   = "datos_completos"
)

// QuotaReport gathers everything the quota workbook shows. SiteColumn
// (delivery.ColFacility or delivery.ColGrowerCode) is the column Cellars and
// ExcessBySite are split by.
type QuotaReport struct {
	ByDate       allocation.Ledger
	ByTicket     allocation.Ledger
	Processed    allocation.Ledger
	SiteColumn   string
	Cellars      []summary.CellarTotals
	Keys         []summary.KeyTotals
	FirstExcess  []summary.FirstExcess
	Excess       []allocation.Entry
	ExcessBySite []allocation.Entry
	Adjusted     []correction.Adjusted
	Corrections  []correction.Entry
}

var detailHeader = []string{
	"vartip", "Variedad", "Dni", "NombreViticultor", "Bodega", "Instalacion", "NifBodega",
	"Fecha", "Fecha_dt", "Tiquet", "Parcela", "RefParcela_norm",
	"kg", "acumulado_nif", "kg_cava", "kg_pgc", "estado", "rendimiento",
}

func detailRows(entries []allocation.Entry) [][]interface{} {
	rows := make([][]interface{}, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []interface{}{
			e.Key, e.Variety, e.TaxID, e.GrowerName, e.Cellar, e.Facility, e.CellarTaxID,
			e.DateRaw, date(e), e.Ticket, e.ParcelRef, e.ParcelRefNorm,
			e.Kg, e.Running, e.KgQuota, e.KgExcess, string(e.State), e.Cap,
		})
	}
	return rows
}

var processedHeader = []string{
	"fuente", "fila", "vartip", "codigo_variedad", "Variedad", "Dni", "NombreViticultor", "nipd",
	"Bodega", "Instalacion", "NifBodega", "Fecha", "Fecha_dt", "Tiquet", "tiquetBascula",
	"Parcela", "RefParcela_norm", "Segmento", "Estado", "motiuPesadaIncidental",
	"posicion", "kg", "kg_cava", "kg_pgc", "acumulado_antes", "acumulado_despues",
	"estado_vartip", "rendimiento",
}

func processedRows(entries []allocation.Entry) [][]interface{} {
	rows := make([][]interface{}, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []interface{}{
			e.Source, e.Line, e.Key, e.VarietyCode, e.Variety, e.TaxID, e.GrowerName, e.GrowerCode,
			e.Cellar, e.Facility, e.CellarTaxID, e.DateRaw, date(e), e.Ticket, e.ScaleTicket,
			e.ParcelRef, e.ParcelRefNorm, e.Segment, e.Status, e.Incident,
			e.Position, e.Kg, e.KgQuota, e.KgExcess, e.AccumulatedBefore, e.AccumulatedAfter,
			string(e.State), e.Cap,
		})
	}
	return rows
}

func date(e allocation.Entry) interface{} {
	if !e.HasDate {
		return nil
	}
	return e.Date
}

// Sheets lays the report out in workbook order. Optional sheets are left
// out when they would be empty.
func (r QuotaReport) Sheets() []Sheet {
	sheets := []Sheet{
		{Name: SheetDetail, Header: detailHeader, Rows: detailRows(r.ByDate.Entries)},
		{Name: SheetDetailTicket, Header: ticketHeader(), Rows: detailRows(r.ByTicket.Entries)},
		{Name: SheetProcessed, Header: processedHeader, Rows: processedRows(r.Processed.Entries)},
	}
	if len(r.Cellars) > 0 {
		sheets = append(sheets, cellarSheet(r.Cellars, r.SiteColumn))
	}
	sheets = append(sheets, keySheet(r.Keys))
	if len(r.Excess) > 0 {
		sheets = append(sheets,
			Sheet{Name: SheetExcess, Header: processedHeader, Rows: processedRows(r.Excess)},
			excessByKeySheet(r.Excess),
		)
	}
	if len(r.FirstExcess) > 0 {
		sheets = append(sheets, firstExcessSheet(r.FirstExcess))
	}
	if len(r.ExcessBySite) > 0 {
		if r.SiteColumn == delivery.ColGrowerCode {
			sheets = append(sheets, excessByGrowerSheet(r.ExcessBySite))
		} else {
			sheets = append(sheets, excessByFacilitySheet(r.ExcessBySite))
		}
	}
	if len(r.Corrections) > 0 {
		sheets = append(sheets, adjustmentSheet(r.Adjusted), correctionSheet(r.Corrections))
	}
	return sheets
}

func ticketHeader() []string {
	h := append([]string(nil), detailHeader...)
	for i, c := range h {
		switch c {
		case "acumulado_nif", "kg_cava", "kg_pgc":
			h[i] = c + "_ticket"
		case "estado":
			h[i] = "estado_ticket"
		}
	}
	return h
}

func cellarSheet(totals []summary.CellarTotals, siteCol string) Sheet {
	site := "Instalacion"
	if siteCol == delivery.ColGrowerCode {
		site = "nipd"
	}
	s := Sheet{Name: SheetCellars, Header: []string{"Bodega", site, "total_kg_pgc", "total_kg_cava", "total_kg_general", "num_pesadas"}}
	for _, t := range totals {
		s.Rows = append(s.Rows, []interface{}{t.Cellar, t.Site, t.Excess, t.Quota, t.Kg, t.Count})
	}
	return s
}

func keySheet(totals []summary.KeyTotals) Sheet {
	s := Sheet{Name: SheetKeys, Header: []string{
		"vartip", "total_kg_pgc", "total_kg_cava", "total_kg_general",
		"rendimiento_maximo", "num_pesadas", "variedad", "porcentaje_uso_rendimiento",
	}}
	for _, t := range totals {
		s.Rows = append(s.Rows, []interface{}{t.Key, t.Excess, t.Quota, t.Kg, t.Cap, t.Count, t.Variety, t.UsagePct})
	}
	return s
}

func excessByKeySheet(entries []allocation.Entry) Sheet {
	s := Sheet{Name: SheetExcessByKey, Header: []string{
		"vartip", "Bodega", "Instalacion", "Tiquet", "Fecha", "Fecha_dt", "Parcela",
		"kg", "kg_cava", "kg_pgc", "acumulado_antes", "acumulado_despues", "estado_vartip",
	}}
	for _, e := range entries {
		s.Rows = append(s.Rows, []interface{}{
			e.Key, e.Cellar, e.Facility, e.Ticket, e.DateRaw, date(e), e.ParcelRef,
			e.Kg, e.KgQuota, e.KgExcess, e.AccumulatedBefore, e.AccumulatedAfter, string(e.State),
		})
	}
	return s
}

func firstExcessSheet(first []summary.FirstExcess) Sheet {
	s := Sheet{Name: SheetFirstExcess, Header: []string{
		"vartip", "n_pesadas_pgc", "kg_pgc_total", "primer_pgc_pos", "primer_tiquet_pgc", "n_pesadas_desde_primer_pgc",
	}}
	for _, f := range first {
		s.Rows = append(s.Rows, []interface{}{f.Key, f.ExcessRows, f.ExcessKg, f.Position, f.Ticket, f.FromFirstExcess})
	}
	return s
}

func excessByFacilitySheet(entries []allocation.Entry) Sheet {
	s := Sheet{Name: SheetExcessByFacility, Header: []string{
		"Bodega", "Instalacion", "NifBodega", "Dni", "Variedad", "Fecha", "Fecha_dt", "Parcela", "Tiquet", "kg_pgc",
	}}
	for _, e := range entries {
		s.Rows = append(s.Rows, []interface{}{
			e.Cellar, e.Facility, e.CellarTaxID, e.TaxID, e.Variety, e.DateRaw, date(e), e.ParcelRef, e.Ticket, e.KgExcess,
		})
	}
	return s
}

// excessByGrowerSheet is the per-nipd list the cellars are sent.
func excessByGrowerSheet(entries []allocation.Entry) Sheet {
	s := Sheet{Name: SheetExcessByGrower, Header: []string{
		"Bodega", "nipd", "Dni", "Variedad", "Fecha", "Fecha_dt", "Parcela", "Tiquet", "tiquetBascula", "kg_pgc",
	}}
	for _, e := range entries {
		s.Rows = append(s.Rows, []interface{}{
			e.Cellar, e.Site(delivery.ColGrowerCode), e.TaxID, e.Variety, e.DateRaw, date(e), e.ParcelRef, e.Ticket, e.ScaleTicket, e.KgExcess,
		})
	}
	return s
}

func adjustmentSheet(adjusted []correction.Adjusted) Sheet {
	s := Sheet{Name: SheetAdjustments, Header: []string{"vartip", "rendimiento_total", "kg_a_restar_total", "rendimiento_ajustado_total"}}
	for _, a := range adjusted {
		s.Rows = append(s.Rows, []interface{}{a.Key, a.TotalYield, a.Correction, a.AdjustedYield})
	}
	return s
}

func correctionSheet(entries []correction.Entry) Sheet {
	s := Sheet{Name: SheetCorrectionsInput, Header: []string{"vartip", "kg_a_restar_total"}}
	for _, e := range entries {
		s.Rows = append(s.Rows, []interface{}{e.Key, e.KgToSubtract})
	}
	return s
}

// ParcelReport is the export of a cleaned registry and its yield ledger.
type ParcelReport struct {
	Ledger  []parcel.YieldEntry
	Parcels []parcel.Parcel
	ByYear  bool
}

func (r ParcelReport) Sheets() []Sheet {
	ledger := Sheet{Name: SheetParcelLedger}
	if r.ByYear {
		ledger.Header = append(ledger.Header, "ejercicio")
	}
	ledger.Header = append(ledger.Header, "nif", "nombre", "vartip", "segmento", "hectareas_variedad", "rendimiento")
	for _, e := range r.Ledger {
		var row []interface{}
		if r.ByYear {
			row = append(row, e.Year)
		}
		ledger.Rows = append(ledger.Rows, append(row, e.TaxID, e.Name, e.Key, e.Segment, e.Hectares, e.MaxYield))
	}

	cleaned := Sheet{Name: SheetParcelsCleaned, Header: []string{
		"fila", "Ejercicio", "RefParcela", "NRegistro", "NIF", "Apellidos", "Nombre", "Variedad",
		"Superficie", "PorcentajeTitularidad", "Estado", "Segmento",
		"superficie_efectiva", "nombre_completo", "codigo_variedad", "vartip", "RefParcela_norm",
	}}
	for _, p := range r.Parcels {
		cleaned.Rows = append(cleaned.Rows, []interface{}{
			p.Line, p.Year, p.ParcelRef, p.Registration, p.TaxID, p.LastName, p.FirstName, p.Variety,
			p.Surface, p.Ownership, p.Status, p.Segment,
			p.EffectiveSurface, p.FullName, p.VarietyCode, p.Key, p.ParcelRefNorm,
		})
	}
	return []Sheet{ledger, cleaned}
}
