// =============================================================================
// folio - XLSX Reader
// =============================================================================
//
// This module reads a worksheet of a brokerage Excel export into a raw
// types.Batch. The first non-empty row of the sheet is the header row; every
// following non-empty row is a record.
//
// SHEET SELECTION:
//   - A named sheet is used when given (error if absent)
//   - Otherwise the first sheet of the workbook
//
// CELL VALUES:
//   - Date-formatted numeric cells become YYYY-MM-DD
//   - Other cells are read as their stored value (no number formatting)
//   - Values are trimmed; blank cells are null
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/folio/internal/csvparser"
	"github.com/ginjaninja78/folio/internal/types"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a worksheet from an XLSX file.
//
// PARAMETERS:
//   - path: The path to the workbook.
//   - sheet: The worksheet name, or "" for the first sheet.
//
// RETURNS:
//   - The raw batch.
//   - An error if the workbook or sheet cannot be read.
func Parse(path, sheet string) (*types.Batch, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	batch, err := ReadSheet(f, sheet)
	if err != nil {
		return nil, err
	}
	batch.Source = path
	return batch, nil
}

// ReadSheet reads a worksheet from an open workbook.
func ReadSheet(f *excelize.File, sheet string) (*types.Batch, error) {
	name, err := resolveSheet(f, sheet)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet %q: %w", name, err)
	}
	dates := newDateCells(f, name)

	// Skip leading blank rows to find the header.
	start := 0
	for start < len(rows) && csvparser.IsRowEmpty(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, fmt.Errorf("sheet %q is empty", name)
	}

	headers := csvparser.CleanHeaders(rows[start])
	batch := types.New(headers...)

	for r, record := range rows[start+1:] {
		if csvparser.IsRowEmpty(record) {
			continue
		}
		row := make(types.Row, len(headers))
		for i, header := range headers {
			if i >= len(record) {
				break
			}
			value := strings.TrimSpace(record[i])
			if d, ok := dates.convert(i+1, start+r+2, value); ok {
				value = d
			}
			row.Set(header, value)
		}
		batch.Rows = append(batch.Rows, row)
	}

	return batch, nil
}

// =============================================================================
// DATE CELLS
// =============================================================================

// dateCells turns date-formatted serial numbers into ISO dates. Style
// lookups are cached by style id.
type dateCells struct {
	f        *excelize.File
	sheet    string
	date1904 bool
	isDate   map[int]bool
}

func newDateCells(f *excelize.File, sheet string) *dateCells {
	d := &dateCells{f: f, sheet: sheet, isDate: map[int]bool{}}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d
}

// convert returns the ISO date for the cell at (col, row) when it holds a
// serial number styled as a date.
func (d *dateCells) convert(col, row int, raw string) (string, bool) {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", false
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", false
	}
	styleID, err := d.f.GetCellStyle(d.sheet, cell)
	if err != nil || !d.dateStyle(styleID) {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

func (d *dateCells) dateStyle(id int) bool {
	if v, ok := d.isDate[id]; ok {
		return v
	}
	v := false
	if style, err := d.f.GetStyle(id); err == nil && style != nil {
		v = IsDateFormat(style.NumFmt, style.CustomNumFmt)
	}
	d.isDate[id] = v
	return v
}

// IsDateFormat reports whether a number format displays a calendar date.
// Built-in ids follow the OOXML table; custom formats are dates when they
// contain a year or day token outside quotes and brackets.
func IsDateFormat(numFmt int, custom *string) bool {
	if custom != nil && *custom != "" {
		code := strings.ToLower(stripLiterals(*custom))
		return strings.ContainsAny(code, "yd")
	}
	switch {
	case numFmt >= 14 && numFmt <= 17, numFmt == 22:
		return true
	case numFmt >= 27 && numFmt <= 36, numFmt >= 50 && numFmt <= 58:
		return true
	}
	return false
}

// stripLiterals removes quoted text and bracketed sections ("[$USD]") from a
// format code.
func stripLiterals(code string) string {
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range code {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case !bracket:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// resolveSheet returns the sheet to read.
func resolveSheet(f *excelize.File, sheet string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	if sheet == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == sheet {
			return s, nil
		}
	}
	return "", fmt.Errorf("sheet %q not found (available: %s)", sheet, strings.Join(sheets, ", "))
}
