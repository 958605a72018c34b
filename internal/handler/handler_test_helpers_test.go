package handler

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tramites-gateway/internal/middleware"
	"github.com/noah-isme/tramites-gateway/internal/models"
)

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func leaderActor() *models.Actor {
	return &models.Actor{UserID: "L1", Name: "Lucía", Role: models.RoleLeader, SubUnitID: 7, SessionID: "s-1", Token: "tok"}
}

func newTestContext(method, target string, body io.Reader, actor *models.Actor, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, body)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		c.Set(middleware.ContextActorKey, *actor)
	}
	c.Params = params
	return c, rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func folio(value string) gin.Param {
	return gin.Param{Key: "folio", Value: value}
}

func jsonBody(raw string) io.Reader {
	return strings.NewReader(raw)
}
