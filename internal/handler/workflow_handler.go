package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/tramites-gateway/internal/dto"
	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/internal/service"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
	"github.com/noah-isme/tramites-gateway/pkg/response"
)

// evidenceFields lists accepted multipart field names for the finalize file, preferred first.
var evidenceFields = []string{"evidencia", "evidence"}

type assignmentService interface {
	Assign(ctx context.Context, actor models.Actor, folio, assigneeUserID, comment string) (models.AssignmentOutcome, error)
	AssignmentStatus(ctx context.Context, folio string) (*models.AssignmentOperation, error)
	RevertAssignment(ctx context.Context, actor models.Actor, folio string) (models.AssignmentOutcome, error)
}

type finalizationService interface {
	Finalize(ctx context.Context, actor models.Actor, req service.FinalizeRequest) (models.Tramite, error)
}

// WorkflowHandler exposes assignment and finalization.
type WorkflowHandler struct {
	assignments assignmentService
	finalizer   finalizationService
	validate    *validator.Validate
}

// NewWorkflowHandler builds a new handler.
func NewWorkflowHandler(assignments assignmentService, finalizer finalizationService, validate *validator.Validate) *WorkflowHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &WorkflowHandler{assignments: assignments, finalizer: finalizer, validate: validate}
}

// Assign godoc
// @Summary Assign a trámite to an analyst
// @Description The worklist reflects the assignment before the backend answers.
// @Tags Workflow
// @Accept json
// @Produce json
// @Param folio path string true "Folio"
// @Param payload body dto.AssignRequest true "Assignee"
// @Success 200 {object} response.Envelope
// @Router /tramites/{folio}/assign [post]
func (h *WorkflowHandler) Assign(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	folio, ok := folioParam(c)
	if !ok {
		return
	}
	var req dto.AssignRequest
	if !bindJSON(c, h.validate, &req, "invalid assign payload") {
		return
	}
	outcome, err := h.assignments.Assign(c.Request.Context(), actor, folio, req.AssigneeUserID, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// AssignmentStatus godoc
// @Summary Latest assignment operation of a folio
// @Tags Workflow
// @Produce json
// @Param folio path string true "Folio"
// @Success 200 {object} response.Envelope
// @Router /tramites/{folio}/assignment [get]
func (h *WorkflowHandler) AssignmentStatus(c *gin.Context) {
	folio, ok := folioParam(c)
	if !ok {
		return
	}
	op, err := h.assignments.AssignmentStatus(c.Request.Context(), folio)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, op, nil)
}

// RevertAssignment godoc
// @Summary Revert a failed assignment to the previous state
// @Tags Workflow
// @Produce json
// @Param folio path string true "Folio"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tramites/{folio}/assignment/revert [post]
func (h *WorkflowHandler) RevertAssignment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	folio, ok := folioParam(c)
	if !ok {
		return
	}
	outcome, err := h.assignments.RevertAssignment(c.Request.Context(), actor, folio)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Finalize godoc
// @Summary Finalize a trámite with its evidence file
// @Tags Workflow
// @Accept multipart/form-data
// @Produce json
// @Param folio path string true "Folio"
// @Param officeMemoNumber formData string true "Office memo number"
// @Param inDebt formData bool false "Whether the case carries debt"
// @Param debtAmount formData string false "Debt amount"
// @Param comment formData string false "History comment"
// @Param evidencia formData file true "Evidence file"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /tramites/{folio}/finalize [post]
func (h *WorkflowHandler) Finalize(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	folio, ok := folioParam(c)
	if !ok {
		return
	}
	var form dto.FinalizeForm
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid finalize form"))
		return
	}
	if !validate(c, h.validate, &form, "invalid finalize form") {
		return
	}
	evidence, err := readEvidence(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	rec, err := h.finalizer.Finalize(c.Request.Context(), actor, service.FinalizeRequest{
		Folio:            folio,
		OfficeMemoNumber: form.OfficeMemoNumber,
		InDebt:           form.InDebt,
		DebtAmount:       form.DebtAmount,
		Comment:          form.Comment,
		Evidence:         evidence,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rec, nil)
}

// readEvidence returns nil when no file was attached; the service reports that as MissingEvidence.
func readEvidence(c *gin.Context) (*models.EvidenceUpload, error) {
	var header *multipart.FileHeader
	for _, field := range evidenceFields {
		if fh, err := c.FormFile(field); err == nil {
			header = fh
			break
		}
	}
	if header == nil {
		return nil, nil
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable evidence file")
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable evidence file")
	}
	return &models.EvidenceUpload{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Content:  content,
	}, nil
}
