package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"CavaPgc/internal/checksum"
)

// ErrUnsupportedFormat is returned for extensions other than xlsx, xls and csv.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ReadFile loads a spreadsheet from disk.
func ReadFile(path string) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Read(filepath.Base(path), data)
}

// Read parses data according to the extension of fileName.
func Read(fileName string, data []byte) (*Workbook, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	var (
		sheets []Grid
		err    error
	)
	switch ext {
	case ".xlsx", ".xlsm":
		sheets, err = parseExcelFile(data)
	case ".xls":
		sheets, err = parseXLSFile(data)
	case ".csv", ".txt":
		sheets, err = parseCSVFile(fileName, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("read %s: no sheets found", fileName)
	}
	return &Workbook{FileName: fileName, Checksum: checksum.Sum(data), Sheets: sheets}, nil
}

// parseExcelFile reads every worksheet with raw cell values so numbers and
// dates keep their stored representation instead of the display format.
func parseExcelFile(data []byte) ([]Grid, error) {
	xl, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer xl.Close()

	var out []Grid
	for _, name := range xl.GetSheetList() {
		rows, err := xl.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		out = append(out, Grid{Name: name, Rows: rows})
	}
	return out, nil
}

// parseXLSFile reads legacy BIFF workbooks.
func parseXLSFile(data []byte) ([]Grid, error) {
	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	var out []Grid
	for i := 0; i < book.NumSheets(); i++ {
		ws := book.GetSheet(i)
		if ws == nil {
			continue
		}
		g := Grid{Name: ws.Name}
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				g.Rows = append(g.Rows, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol()+1)
			for c := 0; c <= row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			g.Rows = append(g.Rows, cells)
		}
		out = append(out, g)
	}
	return out, nil
}

// parseCSVFile reads a single-sheet CSV export. The delimiter is sniffed from
// the first line and Windows-1252 content is converted to UTF-8.
func parseCSVFile(fileName string, data []byte) ([]Grid, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, err
		}
		data = decoded
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	return []Grid{{Name: name, Rows: rows}}, nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte(","))
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
