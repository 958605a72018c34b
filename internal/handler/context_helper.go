package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/tramites-gateway/internal/middleware"
	"github.com/noah-isme/tramites-gateway/internal/models"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
	"github.com/noah-isme/tramites-gateway/pkg/response"
)

func actorFromContext(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(middleware.ContextActorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}

// requireActor writes 401 and returns false when the request carries no actor.
func requireActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

func folioParam(c *gin.Context) (string, bool) {
	folio := strings.TrimSpace(c.Param("folio"))
	if folio == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "folio is required"))
		return "", false
	}
	return folio, true
}

func bindJSON(c *gin.Context, v *validator.Validate, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return validate(c, v, dest, message)
}

func validate(c *gin.Context, v *validator.Validate, dest interface{}, message string) bool {
	if v == nil {
		return true
	}
	if err := v.Struct(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
