package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tramites-gateway/internal/backend"
	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/internal/service"
	"github.com/noah-isme/tramites-gateway/pkg/middleware/requestid"
)

const secret = "middleware-secret"

func token(t *testing.T, role string) string {
	t.Helper()
	claims := &models.JWTClaims{
		UserID:    "U1",
		Role:      role,
		SubUnitID: 3,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-9",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newRouter(roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(nil, service.AuthConfig{AccessTokenSecret: secret})
	router := gin.New()
	router.Use(requestid.Middleware(), WithResponseMeta(), JWT(auth))
	if len(roles) > 0 {
		router.Use(RequireRoles(roles...))
	}
	router.GET("/probe", func(c *gin.Context) {
		actor := c.MustGet(ContextActorKey).(models.Actor)
		SetMeta(c, "role", string(actor.Role))
		c.JSON(http.StatusOK, gin.H{
			"user":    actor.UserID,
			"session": actor.SessionID,
			"token":   backend.TokenFromContext(c.Request.Context()) == actor.Token,
			"reqId":   backend.RequestIDFromContext(c.Request.Context()),
			"meta":    ExtractMeta(c),
		})
	})
	return router
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	router := newRouter()
	for _, header := range []string{"", "Token abc", "Bearer not-a-jwt"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestJWTPropagatesActorTokenAndRequestID(t *testing.T) {
	router := newRouter()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "LIDER"))
	req.Header.Set("X-Request-ID", "req-42")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `"user":"U1"`)
	require.Contains(t, body, `"session":"jti-9"`)
	require.Contains(t, body, `"token":true`)
	require.Contains(t, body, `"reqId":"req-42"`)
	require.Contains(t, body, `"role":"LEADER"`)
}

func TestRequireRoles(t *testing.T) {
	router := newRouter(models.RoleLeader, models.RoleAdmin)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "ANALISTA"))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "ADMIN"))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsMiddlewareToleratesNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Metrics(nil), Metrics(service.NewMetricsService()))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
