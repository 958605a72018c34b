package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tramites-gateway/internal/models"
)

type stubCatalog struct {
	subUnit     int
	invalidated bool
}

func (s *stubCatalog) Types(context.Context) ([]models.TramiteType, error) {
	return []models.TramiteType{{ID: 1, Label: "Licencia"}}, nil
}

func (s *stubCatalog) Analysts(_ context.Context, subUnitID int) ([]models.Analyst, error) {
	s.subUnit = subUnitID
	return nil, nil
}

func (s *stubCatalog) Invalidate(context.Context) error {
	s.invalidated = true
	return nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestCatalogHandlerAnalystsDefaultsToCallerSubUnit(t *testing.T) {
	svc := &stubCatalog{}
	h := NewCatalogHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/catalogs/analysts", nil, leaderActor())
	h.Analysts(c)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 7, svc.subUnit)

	c, rec = newTestContext(http.MethodGet, "/catalogs/analysts?subUnitId=3", nil, leaderActor())
	h.Analysts(c)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, svc.subUnit)

	c, rec = newTestContext(http.MethodGet, "/catalogs/analysts?subUnitId=x", nil, leaderActor())
	h.Analysts(c)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogHandlerTypes(t *testing.T) {
	h := NewCatalogHandler(&stubCatalog{})

	c, rec := newTestContext(http.MethodGet, "/catalogs/types", nil, leaderActor())
	h.Types(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Licencia")
}

func TestCatalogHandlerRefresh(t *testing.T) {
	svc := &stubCatalog{}
	h := NewCatalogHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/catalogs/refresh", nil, leaderActor())
	h.Refresh(c)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, svc.invalidated)
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]Pinger{"redis": stubPinger{}, "journal": nil})
	c, rec := newTestContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	require.Equal(t, http.StatusOK, rec.Code)

	h = NewMetricsHandler(nil, map[string]Pinger{"redis": stubPinger{err: errors.New("connection refused")}})
	c, rec = newTestContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "connection refused")
}

type recordingForgetter struct{ sessions []string }

func (r *recordingForgetter) ForgetSession(id string) { r.sessions = append(r.sessions, id) }

func TestSessionHandlerEndForgetsEverywhere(t *testing.T) {
	a, b := &recordingForgetter{}, &recordingForgetter{}
	h := NewSessionHandler(a, b)

	c, rec := newTestContext(http.MethodDelete, "/session", nil, leaderActor())
	h.End(c)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []string{"s-1"}, a.sessions)
	require.Equal(t, []string{"s-1"}, b.sessions)
}
