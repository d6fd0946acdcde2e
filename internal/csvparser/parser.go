// =============================================================================
// folio - CSV Reader
// =============================================================================
//
// This module reads brokerage CSV exports into a raw types.Batch. It handles:
//   - Different delimiters (comma, semicolon, pipe, tab)
//   - Legacy encodings (Windows-1252, ISO-8859-1) via golang.org/x/text
//   - A UTF-8 byte order mark on the header row
//   - Ragged rows and loosely quoted fields
//
// Cells are trimmed and blank cells are left out of the row (null). Blank
// headers are named Column_N.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/folio/internal/config"
	"github.com/ginjaninja78/folio/internal/types"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns its rows as a batch.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV settings from the configuration.
//
// RETURNS:
//   - The raw batch, columns in file order.
//   - An error if the file cannot be read, decoded or is empty.
func Parse(filePath string, settings config.CSVSettings) (*types.Batch, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	batch, err := Read(file, settings)
	if err != nil {
		return nil, err
	}
	batch.Source = filePath
	return batch, nil
}

// Read parses CSV content from r.
func Read(r io.Reader, settings config.CSVSettings) (*types.Batch, error) {
	decoded, err := decoder(r, settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(bufio.NewReader(decoded))
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	headers := CleanHeaders(allRows[0])
	batch := types.New(headers...)
	batch.Rows = extractDataRows(allRows[1:], headers)
	return batch, nil
}

// decoder wraps r so that it yields UTF-8.
func decoder(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(encoding), "_", "-")) {
	case "", "UTF-8", "UTF8":
		return r, nil
	case "WINDOWS-1252", "CP1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "ISO-8859-15", "LATIN9":
		return transform.NewReader(r, charmap.ISO8859_15.NewDecoder()), nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", encoding)
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Broker exports are not strict RFC 4180.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// CleanHeaders trims header cells, strips a byte order mark and names blank
// headers Column_N. A repeated header (compared case-insensitively) gets a
// numeric suffix, so "Date,Amount,Date" reads as Date, Amount, Date_2.
func CleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	used := make(map[string]bool, len(headers))
	for i, header := range headers {
		if i == 0 {
			header = strings.TrimPrefix(header, "\ufeff")
		}
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		name := header
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d", header, n)
		}
		used[strings.ToLower(name)] = true
		cleaned[i] = name
	}
	return cleaned
}

// extractDataRows converts raw records to rows, skipping empty records.
func extractDataRows(records [][]string, headers []string) []types.Row {
	rows := make([]types.Row, 0, len(records))
	for _, record := range records {
		if IsRowEmpty(record) {
			continue
		}
		row := make(types.Row, len(headers))
		for colIndex, header := range headers {
			if colIndex < len(record) {
				row.Set(header, strings.TrimSpace(record[colIndex]))
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// IsRowEmpty checks if a record contains only blank cells.
func IsRowEmpty(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
