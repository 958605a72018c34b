package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tramites-gateway/internal/dto"
	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/internal/service"
	"github.com/noah-isme/tramites-gateway/pkg/response"
)

type evidenceService interface {
	Open(ctx context.Context, actor models.Actor, folio string, inline bool) (*service.EvidenceHandle, error)
	Consume(token string) (*service.EvidenceDownload, error)
}

// EvidenceHandler hands out and redeems transient evidence handles.
type EvidenceHandler struct {
	service evidenceService
}

// NewEvidenceHandler builds a new handler.
func NewEvidenceHandler(service evidenceService) *EvidenceHandler {
	return &EvidenceHandler{service: service}
}

// Open godoc
// @Summary Open a transient handle to the evidence of a folio
// @Tags Evidence
// @Accept json
// @Produce json
// @Param folio path string true "Folio"
// @Param payload body dto.OpenEvidenceRequest false "Viewing mode"
// @Success 201 {object} response.Envelope
// @Router /tramites/{folio}/evidence [post]
func (h *EvidenceHandler) Open(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	folio, ok := folioParam(c)
	if !ok {
		return
	}
	var req dto.OpenEvidenceRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, nil, &req, "invalid evidence request") {
			return
		}
	}
	handle, err := h.service.Open(c.Request.Context(), actor, folio, req.Inline)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, handle, nil)
}

// Download godoc
// @Summary Redeem an evidence handle (single use)
// @Tags Evidence
// @Produce octet-stream
// @Param token path string true "Handle token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /evidence/{token} [get]
func (h *EvidenceHandler) Download(c *gin.Context) {
	download, err := h.service.Consume(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, download.Filename, download.ContentType, download.Content, download.Inline)
}
