package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// utf8BOM lets spreadsheet tools detect the encoding of accented labels.
const utf8BOM = "\xEF\xBB\xBF"

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders a worklist dataset as spreadsheet-safe CSV.
type CSVExporter struct {
	bom bool
}

// CSVOption configures the CSV exporter.
type CSVOption func(*CSVExporter)

// WithoutBOM omits the leading byte order mark.
func WithoutBOM() CSVOption {
	return func(e *CSVExporter) {
		e.bom = false
	}
}

// NewCSVExporter builds a CSV exporter that writes a UTF-8 BOM by default.
func NewCSVExporter(opts ...CSVOption) *CSVExporter {
	e := &CSVExporter{bom: true}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Render produces CSV bytes in header order. Cells that a spreadsheet would evaluate are quoted as text.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv export requires at least one column")
	}
	buf := &bytes.Buffer{}
	if e.bom {
		buf.WriteString(utf8BOM)
	}
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv header row: %w", err)
	}
	record := make([]string, len(data.Headers))
	for n, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = neutralizeFormula(row[header])
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", n+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// neutralizeFormula prefixes free text that starts like a formula so it opens as a literal.
// Plain numbers such as negative remaining days pass through.
func neutralizeFormula(cell string) string {
	if cell == "" {
		return cell
	}
	if _, err := strconv.ParseFloat(cell, 64); err == nil {
		return cell
	}
	if strings.ContainsRune("=+-@", rune(cell[0])) {
		return "'" + cell
	}
	return cell
}
