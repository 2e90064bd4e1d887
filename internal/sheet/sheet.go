package sheet

import (
	"strings"

	"CavaPgc/internal/normalize"
)

// Grid is one worksheet as raw rows of cell text.
type Grid struct {
	Name string
	Rows [][]string
}

// Workbook holds every worksheet of an input file in file order.
type Workbook struct {
	FileName string
	// Checksum is the SHA-256 of the file bytes, empty for in-memory books.
	Checksum string
	Sheets   []Grid
}

// Sheet returns the worksheet whose normalized name equals name.
func (wb *Workbook) Sheet(name string) (Grid, bool) {
	want := normalize.Text(name)
	for _, g := range wb.Sheets {
		if normalize.Text(g.Name) == want {
			return g, true
		}
	}
	return Grid{}, false
}

// Pick returns the sheet called preferred, else the first sheet whose name
// contains one of the hints, else the first sheet.
func (wb *Workbook) Pick(preferred string, hints ...string) Grid {
	if len(wb.Sheets) == 0 {
		return Grid{}
	}
	if preferred != "" {
		if g, ok := wb.Sheet(preferred); ok {
			return g
		}
	}
	for _, g := range wb.Sheets {
		n := normalize.Text(g.Name)
		for _, h := range hints {
			if strings.Contains(n, normalize.Text(h)) {
				return g
			}
		}
	}
	return wb.Sheets[0]
}

// Row is a data row with its 1-based line number in the source sheet.
type Row struct {
	Line  int
	Cells []string
}

// Table is a worksheet split into a header row and data rows.
type Table struct {
	Sheet     string
	HeaderRow int
	Header    []string
	Rows      []Row
}

// NewTable uses row headerRow (0-based) as header. Blank rows are dropped.
func NewTable(g Grid, headerRow int) Table {
	t := Table{Sheet: g.Name, HeaderRow: headerRow}
	if headerRow < 0 || headerRow >= len(g.Rows) {
		return t
	}
	t.Header = make([]string, len(g.Rows[headerRow]))
	for i, h := range g.Rows[headerRow] {
		t.Header[i] = strings.TrimSpace(h)
	}
	for i := headerRow + 1; i < len(g.Rows); i++ {
		if isEmptyRow(g.Rows[i]) {
			continue
		}
		t.Rows = append(t.Rows, Row{Line: i + 1, Cells: g.Rows[i]})
	}
	return t
}

// ShiftedHeader handles sheets that may carry metadata rows above the real
// header: when fewer than minMatches nominal headers appear in row 0 the
// header is assumed to sit at row skip.
func ShiftedHeader(g Grid, nominal []string, minMatches, skip int) int {
	if len(g.Rows) == 0 {
		return 0
	}
	first := make(map[string]bool, len(g.Rows[0]))
	for _, c := range g.Rows[0] {
		first[normalize.Text(c)] = true
	}
	matches := 0
	for _, n := range nominal {
		if first[normalize.Text(n)] {
			matches++
		}
	}
	if matches < minMatches {
		return skip
	}
	return 0
}

// ScoredHeader scans the first scanRows rows and returns the row with the
// most cells found in tokens, provided it reaches minScore; otherwise 0.
// Ties keep the earliest row.
func ScoredHeader(g Grid, tokens []string, scanRows, minScore int) int {
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[normalize.Text(tok)] = true
	}
	bestRow, bestScore := 0, -1
	for i := 0; i < len(g.Rows) && i < scanRows; i++ {
		score := 0
		for _, c := range g.Rows[i] {
			if set[normalize.Text(c)] {
				score++
			}
		}
		if score > bestScore {
			bestRow, bestScore = i, score
		}
	}
	if bestScore >= minScore {
		return bestRow
	}
	return 0
}

// isEmptyRow checks if all cells are empty
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
