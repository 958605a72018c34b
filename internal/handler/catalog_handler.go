package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tramites-gateway/internal/models"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
	"github.com/noah-isme/tramites-gateway/pkg/response"
)

type catalogService interface {
	Types(ctx context.Context) ([]models.TramiteType, error)
	Analysts(ctx context.Context, subUnitID int) ([]models.Analyst, error)
	Invalidate(ctx context.Context) error
}

// CatalogHandler exposes read-only catalogs.
type CatalogHandler struct {
	service catalogService
}

// NewCatalogHandler builds a new handler.
func NewCatalogHandler(service catalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// Types godoc
// @Summary List trámite types
// @Tags Catalogs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalogs/types [get]
func (h *CatalogHandler) Types(c *gin.Context) {
	types, err := h.service.Types(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// Analysts godoc
// @Summary List analysts of a sub-unit
// @Tags Catalogs
// @Produce json
// @Param subUnitId query int false "Sub-unit (defaults to the caller's)"
// @Success 200 {object} response.Envelope
// @Router /catalogs/analysts [get]
func (h *CatalogHandler) Analysts(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	subUnitID := actor.SubUnitID
	if raw := c.Query("subUnitId"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "subUnitId must be a positive integer"))
			return
		}
		subUnitID = parsed
	}
	analysts, err := h.service.Analysts(c.Request.Context(), subUnitID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analysts, nil)
}

// Refresh godoc
// @Summary Drop cached catalogs
// @Tags Catalogs
// @Success 204
// @Router /catalogs/refresh [post]
func (h *CatalogHandler) Refresh(c *gin.Context) {
	if err := h.service.Invalidate(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
