package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/tramites-gateway/internal/models"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
	"github.com/noah-isme/tramites-gateway/pkg/export"
)

// ExportFormat enumerates supported worklist export formats.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

var exportContentTypes = map[ExportFormat]string{
	ExportFormatCSV:  "text/csv",
	ExportFormatPDF:  "application/pdf",
	ExportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ParseExportFormat validates a requested format.
func ParseExportFormat(raw string) (ExportFormat, error) {
	format := ExportFormat(strings.ToLower(strings.TrimSpace(raw)))
	if format == "" {
		return ExportFormatCSV, nil
	}
	if _, ok := exportContentTypes[format]; !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
	return format, nil
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
	Rows        int
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	MaxRows  int
	PDFTitle string
	Location *time.Location
}

type worklistSearcher interface {
	Search(ctx context.Context, actor models.Actor, filter models.TramiteFilter) (models.TramitePage, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportService renders the actor's scoped worklist into downloadable files.
type ExportService struct {
	tramites worklistSearcher
	csv      csvRenderer
	pdf      pdfRenderer
	xlsx     xlsxRenderer
	logger   *zap.Logger
	cfg      ExportConfig
	now      func() time.Time
}

var exportHeaders = []string{
	"Folio", "Type", "Status", "Requester", "Assigned To", "Assigned By",
	"Created", "Due Date", "Remaining Days", "SLA", "In Debt", "Debt Amount", "Office Memo",
}

// NewExportService constructs an ExportService. Nil renderers fall back to the pkg/export defaults.
func NewExportService(tramites worklistSearcher, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if cfg.PDFTitle == "" {
		cfg.PDFTitle = "Trámites"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter("Tramites")
	}
	return &ExportService{
		tramites: tramites,
		csv:      csv,
		pdf:      pdf,
		xlsx:     xlsx,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Export pages through the scoped search and renders every record up to MaxRows.
func (s *ExportService) Export(ctx context.Context, actor models.Actor, filter models.TramiteFilter, format ExportFormat) (*ExportFile, error) {
	if !Permissions(actor.Role).Export {
		return nil, forbidden(actor, "export")
	}
	contentType, ok := exportContentTypes[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	records, err := s.collect(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	dataset := s.buildDataset(records)

	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, s.cfg.PDFTitle)
	case ExportFormatXLSX:
		payload, err = s.xlsx.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render export")
	}

	s.logger.Info("worklist exported",
		zap.String("format", string(format)),
		zap.Int("rows", len(records)),
		zap.String("actor_id", actor.UserID),
	)
	return &ExportFile{
		Filename:    s.buildFilename(format),
		ContentType: contentType,
		Content:     payload,
		Rows:        len(records),
	}, nil
}

func (s *ExportService) collect(ctx context.Context, actor models.Actor, filter models.TramiteFilter) ([]models.Tramite, error) {
	filter.Page = 0
	filter.Size = maxPageSize
	records := make([]models.Tramite, 0)
	for {
		page, err := s.tramites.Search(ctx, actor, filter)
		if err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if len(records) >= s.cfg.MaxRows {
			s.logger.Warn("export truncated", zap.Int("max_rows", s.cfg.MaxRows), zap.Int("total", page.TotalCount))
			return records[:s.cfg.MaxRows], nil
		}
		if len(page.Records) == 0 || len(records) >= page.TotalCount {
			return records, nil
		}
		filter.Page++
	}
}

func (s *ExportService) buildDataset(records []models.Tramite) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, map[string]string{
			"Folio":          r.Folio,
			"Type":           r.TypeDesc,
			"Status":         r.StatusID.Label(),
			"Requester":      firstNonEmpty(r.RequesterName, r.RequesterID),
			"Assigned To":    firstNonEmpty(r.AssignedToName, r.AssignedTo),
			"Assigned By":    firstNonEmpty(r.AssignedByName, r.AssignedBy),
			"Created":        s.formatDate(&r.CreatedAt),
			"Due Date":       s.formatDate(r.DueDate),
			"Remaining Days": formatRemaining(r.RemainingDays),
			"SLA":            string(r.SlaLabel),
			"In Debt":        formatBool(r.InDebt),
			"Debt Amount":    FormatCurrency(r.EffectiveDebt()),
			"Office Memo":    r.OfficeMemoNumber,
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}

func (s *ExportService) buildFilename(format ExportFormat) string {
	return fmt.Sprintf("tramites_%s.%s", s.now().In(s.cfg.Location).Format("20060102_150405"), format)
}

func (s *ExportService) formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(s.cfg.Location).Format("2006-01-02")
}

// FormatCurrency renders an amount as "$1,234.50".
func FormatCurrency(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return sign + "$" + b.String() + "." + frac
}

func formatRemaining(days *int) string {
	if days == nil {
		return ""
	}
	return strconv.Itoa(*days)
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
