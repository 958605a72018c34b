package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tramites-gateway/internal/models"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
)

type pagedSearcher struct {
	records []models.Tramite
	pages   []int
}

func (p *pagedSearcher) Search(ctx context.Context, actor models.Actor, filter models.TramiteFilter) (models.TramitePage, error) {
	p.pages = append(p.pages, filter.Page)
	start := filter.Page * filter.Size
	if start > len(p.records) {
		start = len(p.records)
	}
	end := start + filter.Size
	if end > len(p.records) {
		end = len(p.records)
	}
	return models.TramitePage{Records: p.records[start:end], TotalCount: len(p.records)}, nil
}

func exportRecords(n int) []models.Tramite {
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	out := make([]models.Tramite, n)
	for i := range out {
		out[i] = models.Tramite{
			Folio:      fmt.Sprintf("F-%03d", i),
			TypeDesc:   "Constancia",
			StatusID:   models.StatusInProcess,
			CreatedAt:  created,
			SlaLabel:   models.SlaOnTime,
			InDebt:     true,
			DebtAmount: decimal.RequireFromString("1234.5"),
		}
	}
	return out
}

func TestExportCSVIncludesLabelsAndCurrency(t *testing.T) {
	searcher := &pagedSearcher{records: exportRecords(2)}
	svc := NewExportService(searcher, ExportConfig{}, nil, nil, nil, nil)

	file, err := svc.Export(context.Background(), leader(), models.TramiteFilter{}, ExportFormatCSV)
	require.NoError(t, err)
	require.Equal(t, "text/csv", file.ContentType)
	require.Equal(t, 2, file.Rows)
	require.True(t, strings.HasSuffix(file.Filename, ".csv"))

	body := string(file.Content)
	require.Contains(t, body, "In Process")
	require.Contains(t, body, "ON_TIME")
	require.Contains(t, body, `"$1,234.50"`)
	require.Contains(t, body, "2025-01-01")
}

func TestExportPagesUntilTotalAndCapsRows(t *testing.T) {
	searcher := &pagedSearcher{records: exportRecords(450)}
	svc := NewExportService(searcher, ExportConfig{}, nil, nil, nil, nil)

	file, err := svc.Export(context.Background(), leader(), models.TramiteFilter{}, ExportFormatXLSX)
	require.NoError(t, err)
	require.Equal(t, 450, file.Rows)
	require.Equal(t, []int{0, 1, 2}, searcher.pages)
	require.NotEmpty(t, file.Content)

	capped := NewExportService(&pagedSearcher{records: exportRecords(450)}, ExportConfig{MaxRows: 250}, nil, nil, nil, nil)
	file, err = capped.Export(context.Background(), leader(), models.TramiteFilter{}, ExportFormatPDF)
	require.NoError(t, err)
	require.Equal(t, 250, file.Rows)
	require.Equal(t, "application/pdf", file.ContentType)
}

func TestExportRequiresPermission(t *testing.T) {
	searcher := &pagedSearcher{}
	svc := NewExportService(searcher, ExportConfig{}, nil, nil, nil, nil)

	_, err := svc.Export(context.Background(), analyst("A1"), models.TramiteFilter{}, ExportFormatCSV)
	require.ErrorIs(t, err, appErrors.ErrForbidden)
	require.Empty(t, searcher.pages)
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("XLSX")
	require.NoError(t, err)
	require.Equal(t, ExportFormatXLSX, f)

	f, err = ParseExportFormat("")
	require.NoError(t, err)
	require.Equal(t, ExportFormatCSV, f)

	_, err = ParseExportFormat("docx")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestFormatCurrency(t *testing.T) {
	require.Equal(t, "$0.00", FormatCurrency(decimal.Zero))
	require.Equal(t, "$999.90", FormatCurrency(decimal.RequireFromString("999.9")))
	require.Equal(t, "$1,234,567.00", FormatCurrency(decimal.RequireFromString("1234567")))
	require.Equal(t, "-$12.50", FormatCurrency(decimal.RequireFromString("-12.5")))
}
