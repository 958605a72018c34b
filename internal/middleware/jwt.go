package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tramites-gateway/internal/backend"
	"github.com/noah-isme/tramites-gateway/internal/service"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
	"github.com/noah-isme/tramites-gateway/pkg/logger"
	"github.com/noah-isme/tramites-gateway/pkg/middleware/requestid"
	"github.com/noah-isme/tramites-gateway/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing JWT claims.
	ContextUserKey = "currentUser"
	// ContextActorKey is the gin context key storing the workflow actor.
	ContextActorKey = "currentActor"
)

// JWT protects routes by requiring a valid access token. The token is forwarded on every backend call.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		actor, claims, err := authService.Authenticate(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(ContextActorKey, actor)
		c.Set(logger.ActorKey, actor.UserID)

		ctx := backend.WithToken(c.Request.Context(), actor.Token)
		if id := requestid.Value(c); id != "" {
			ctx = backend.WithRequestID(ctx, id)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
