package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/tramites-gateway/internal/dto"
	"github.com/noah-isme/tramites-gateway/internal/middleware"
	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/internal/service"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
	"github.com/noah-isme/tramites-gateway/pkg/response"
)

type tramiteService interface {
	Search(ctx context.Context, actor models.Actor, filter models.TramiteFilter) (models.TramitePage, error)
	Detail(ctx context.Context, folio string) (models.TramiteFull, error)
	ChangeType(ctx context.Context, actor models.Actor, folio string, newTypeID int, comment string) (models.Tramite, error)
	ChangeStatus(ctx context.Context, actor models.Actor, folio string, target models.Status, comment string) (models.Tramite, error)
	EditDebt(ctx context.Context, actor models.Actor, folio string, inDebt *bool, amount *string) (models.Tramite, error)
}

type exportService interface {
	Export(ctx context.Context, actor models.Actor, filter models.TramiteFilter, format service.ExportFormat) (*service.ExportFile, error)
}

// TramiteHandler exposes worklist search and the generic workflow actions.
type TramiteHandler struct {
	service  tramiteService
	exporter exportService
	validate *validator.Validate
}

// NewTramiteHandler builds a new handler.
func NewTramiteHandler(service tramiteService, exporter exportService, validate *validator.Validate) *TramiteHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &TramiteHandler{service: service, exporter: exporter, validate: validate}
}

// Search godoc
// @Summary Search the worklist
// @Description Results are scoped by role, annotated with SLA fields and merged into the worklist.
// @Tags Tramites
// @Produce json
// @Param subUnitId query int false "Sub-unit filter"
// @Param statusId query int false "Status filter (1-5)"
// @Param assignedTo query string false "Assignee user id"
// @Param assigned query bool false "Only assigned (true) or unassigned (false)"
// @Param q query string false "Folio or free text"
// @Param page query int false "Zero-based page"
// @Param size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tramites [get]
func (h *TramiteHandler) Search(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	page, err := h.service.Search(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: page.Page, PageSize: page.Size, TotalCount: page.TotalCount}
	response.JSON(c, http.StatusOK, page.Records, pagination, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export the worklist
// @Tags Tramites
// @Produce octet-stream
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /tramites/export [get]
func (h *TramiteHandler) Export(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), actor, filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content, false)
}

// Detail godoc
// @Summary Get the detail, history and documents of a folio
// @Tags Tramites
// @Produce json
// @Param folio path string true "Folio"
// @Success 200 {object} response.Envelope
// @Router /tramites/{folio} [get]
func (h *TramiteHandler) Detail(c *gin.Context) {
	folio, ok := folioParam(c)
	if !ok {
		return
	}
	full, err := h.service.Detail(c.Request.Context(), folio)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, full, nil)
}

// ChangeType godoc
// @Summary Reclassify a trámite
// @Tags Tramites
// @Accept json
// @Produce json
// @Param folio path string true "Folio"
// @Param payload body dto.ChangeTypeRequest true "New type"
// @Success 200 {object} response.Envelope
// @Router /tramites/{folio}/type [patch]
func (h *TramiteHandler) ChangeType(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	folio, ok := folioParam(c)
	if !ok {
		return
	}
	var req dto.ChangeTypeRequest
	if !bindJSON(c, h.validate, &req, "invalid change type payload") {
		return
	}
	rec, err := h.service.ChangeType(c.Request.Context(), actor, folio, req.NewTypeID, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rec, nil)
}

// ChangeStatus godoc
// @Summary Move a trámite to another status
// @Description Finalize and assign have their own endpoints.
// @Tags Tramites
// @Accept json
// @Produce json
// @Param folio path string true "Folio"
// @Param payload body dto.ChangeStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tramites/{folio}/status [patch]
func (h *TramiteHandler) ChangeStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	folio, ok := folioParam(c)
	if !ok {
		return
	}
	var req dto.ChangeStatusRequest
	if !bindJSON(c, h.validate, &req, "invalid status payload") {
		return
	}
	rec, err := h.service.ChangeStatus(c.Request.Context(), actor, folio, models.Status(req.ToStatusID), req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rec, nil)
}

// EditDebt godoc
// @Summary Edit the local debt fields before finalizing
// @Tags Tramites
// @Accept json
// @Produce json
// @Param folio path string true "Folio"
// @Param payload body dto.EditDebtRequest true "Debt fields"
// @Success 200 {object} response.Envelope
// @Router /tramites/{folio}/debt [patch]
func (h *TramiteHandler) EditDebt(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	folio, ok := folioParam(c)
	if !ok {
		return
	}
	var req dto.EditDebtRequest
	if !bindJSON(c, h.validate, &req, "invalid debt payload") {
		return
	}
	if req.InDebt == nil && req.DebtAmount == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "inDebt or debtAmount is required"))
		return
	}
	rec, err := h.service.EditDebt(c.Request.Context(), actor, folio, req.InDebt, req.DebtAmount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rec, nil)
}

func (h *TramiteHandler) bindFilter(c *gin.Context) (models.TramiteFilter, bool) {
	var q dto.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid search query"))
		return models.TramiteFilter{}, false
	}
	if !validate(c, h.validate, &q, "invalid search query") {
		return models.TramiteFilter{}, false
	}
	filter := models.TramiteFilter{
		SubUnitID:  q.SubUnitID,
		AssignedTo: q.AssignedTo,
		Assigned:   q.Assigned,
		Query:      q.Query,
		Page:       q.Page,
		Size:       q.Size,
	}
	if q.StatusID != nil {
		status := models.Status(*q.StatusID)
		filter.StatusID = &status
	}
	return filter, true
}
