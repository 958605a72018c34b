package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/pkg/config"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.BackendConfig{BaseURL: srv.URL, Timeout: time.Second})
}

func TestSearchForwardsFiltersAndToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tramites/search", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "req-1", r.Header.Get("X-Request-ID"))
		require.Equal(t, "7", r.URL.Query().Get("subWorkUnitId"))
		require.Equal(t, "u-1", r.URL.Query().Get("assignedTo"))
		require.Equal(t, "false", r.URL.Query().Get("assigned"))
		_, _ = io.WriteString(w, `{"content":[{"id":1,"folio":"F-1","tramiteTypeId":3,"tramiteTypeDesc":"Constancia",
			"statusId":2,"statusDesc":"ASIGNADO","requesterId":"r1","createdAt":"2025-01-01T09:30:00",
			"assignedTo":"u-1","assignedToName":"Ana","assignedAt":"2025-01-02T10:00:00Z","assignedBy":null,
			"enAdeudo":true,"adeudo":150.5,"noficio":"null","docsCount":2}],"totalElements":1,"number":0,"size":20}`)
	})

	sub := 7
	assigned := false
	ctx := WithRequestID(WithToken(context.Background(), "tok"), "req-1")
	page, err := client.Search(ctx, models.TramiteFilter{SubUnitID: &sub, AssignedTo: "u-1", Assigned: &assigned, Size: 20})
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalCount)
	require.Len(t, page.Records, 1)

	rec := page.Records[0]
	require.Equal(t, "F-1", rec.Folio)
	require.Equal(t, models.StatusAssigned, rec.StatusID)
	require.Equal(t, "Ana", rec.AssignedToName)
	require.Empty(t, rec.AssignedBy)
	require.Empty(t, rec.OfficeMemoNumber)
	require.True(t, rec.InDebt)
	require.Equal(t, "150.5", rec.DebtAmount.String())
	require.NotNil(t, rec.AssignedAt)
	require.Equal(t, 2025, rec.CreatedAt.Year())
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		want    *appErrors.Error
		message string
	}{
		{"session 419", StatusSessionExpired, `{}`, appErrors.ErrSessionExpired, ""},
		{"session 440", StatusLoginTimeout, ``, appErrors.ErrSessionExpired, ""},
		{"not found", http.StatusNotFound, `{"message":"folio inexistente"}`, appErrors.ErrNotFound, "folio inexistente"},
		{"server error", http.StatusInternalServerError, `{"error":"db down"}`, appErrors.ErrNetworkFailure, "db down"},
		{"plain body", http.StatusBadRequest, `transición inválida`, appErrors.ErrNetworkFailure, "transición inválida"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := client.GetFull(context.Background(), "F-1")
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.want))
			if tc.message != "" {
				require.Equal(t, tc.message, appErrors.FromError(err).Message)
			}
		})
	}
}

func TestAuthEndpoint401IsSessionExpiry(t *testing.T) {
	require.True(t, errors.Is(mapStatus("/auth/me", http.StatusUnauthorized, ""), appErrors.ErrSessionExpired))
	require.True(t, errors.Is(mapStatus("/api/tramites/search", http.StatusUnauthorized, ""), appErrors.ErrNetworkFailure))
}

func TestTransportFailureIsNetworkFailure(t *testing.T) {
	client := NewClient(config.BackendConfig{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	_, err := client.ListTypes(context.Background())
	require.True(t, errors.Is(err, appErrors.ErrNetworkFailure))
}

func TestChangeStatusSendsSidecarWithExplicitNulls(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/tramites/F-1/status", r.URL.Path)
		var sidecar map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("data")), &sidecar))
		require.EqualValues(t, 3, sidecar["toStatusId"])
		require.Contains(t, sidecar, "adeudo")
		require.Nil(t, sidecar["adeudo"])
		require.Nil(t, sidecar["enadeudo"])
		require.Equal(t, "null", sidecar["noficio"])
		w.WriteHeader(http.StatusOK)
	})

	err := client.ChangeStatus(context.Background(), "F-1", models.StatusSidecar{ToStatusID: 3, ActorUserID: "u", Comment: "c", Noficio: models.AbsentMarker})
	require.NoError(t, err)
}

func TestChangeStatusWithEvidenceSendsMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("evidencia")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		require.Equal(t, "acta.pdf", header.Filename)
		require.Equal(t, "%PDF-1.4", string(content))

		var sidecar models.StatusSidecar
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("data")), &sidecar))
		require.Equal(t, 4, sidecar.ToStatusID)
		require.Equal(t, "OF-12", sidecar.Noficio)
		require.NotNil(t, sidecar.Enadeudo)
		w.WriteHeader(http.StatusOK)
	})

	amount := 0.0
	inDebt := false
	err := client.ChangeStatusWithEvidence(context.Background(), "F-1",
		models.StatusSidecar{ToStatusID: 4, ActorUserID: "u", Comment: "ok", Adeudo: &amount, Noficio: "OF-12", Enadeudo: &inDebt},
		models.EvidenceUpload{Filename: "acta.pdf", MimeType: "application/pdf", Content: []byte("%PDF-1.4")})
	require.NoError(t, err)
}

func TestAssignDecodesAuthoritativeFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tramites/tickets/F-100/assign", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "A1", body["assigneeUserId"])
		require.EqualValues(t, 2, body["newStatusId"])
		_, _ = io.WriteString(w, `{"assigneeId":"A1","assigneeName":"Ana","assignedBy":"L1","assignedByName":"Lucía","assignedAt":"2025-01-03T08:00:00Z"}`)
	})

	res, err := client.Assign(context.Background(), "F-100", "A1", "assigned")
	require.NoError(t, err)
	require.Equal(t, "Ana", res.AssigneeName)
	require.Equal(t, "Lucía", res.AssignedByName)
	require.NotNil(t, res.AssignedAt)
}

func TestListAnalystsAcceptsBothShapes(t *testing.T) {
	bodies := []string{
		`{"content":[{"userId":"u1","fullName":"Ana López"},{"userId":"u2","name":"Beto"},{"userId":"u3"}]}`,
		`[{"userId":"u1","fullName":"Ana López"},{"userId":"u2","name":"Beto"},{"userId":"u3"}]`,
	}
	for _, body := range bodies {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "true", r.URL.Query().Get("onlyAnalysts"))
			_, _ = io.WriteString(w, body)
		})
		analysts, err := client.ListAnalysts(context.Background(), 4)
		require.NoError(t, err)
		require.Equal(t, []string{"Ana López", "Beto", "u3"}, []string{analysts[0].Name, analysts[1].Name, analysts[2].Name})
	}
}

func TestGetEvidenceFilename(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "true", r.URL.Query().Get("inline"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `inline; filename="plain.pdf"; filename*=UTF-8''acta%20final.pdf`)
		_, _ = io.WriteString(w, "pdf-bytes")
	})

	file, err := client.GetEvidence(context.Background(), "F-1", true)
	require.NoError(t, err)
	require.Equal(t, "acta final.pdf", file.Filename)
	require.Equal(t, "application/pdf", file.ContentType)
	require.Equal(t, []byte("pdf-bytes"), file.Content)
}

func TestFilenameFromDispositionFallbacks(t *testing.T) {
	require.Equal(t, "x.png", FilenameFromDisposition(`attachment; filename="x.png"`, "fb"))
	require.Equal(t, "evidencia-F-9", FilenameFromDisposition("", "evidencia-F-9"))
}

func TestGetFullParsesHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tramites/F-1/full", r.URL.Path)
		_, _ = io.WriteString(w, `{"history":{"folio":"F-1","currentStatus":"ASIGNADO","history":[
			{"fromStatus":"RECIBIDO","toStatus":"ASIGNADO","changedBy":"lider1","changedAt":"2025-01-02 10:00:00","comment":"ok"}]},
			"docs":[{"id":9,"originalName":"ine.pdf","uploadedAt":"2025-01-01T00:00:00Z"}]}`)
	})

	full, err := client.GetFull(context.Background(), "F-1")
	require.NoError(t, err)
	require.Len(t, full.Detail.History, 1)
	require.Equal(t, "lider1", full.Detail.History[0].ChangedBy)
	require.Len(t, full.Documents, 1)
	require.Equal(t, "ine.pdf", full.Documents[0].OriginalName)
}

func TestListSlaRules(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"content":[{"id":1,"code":"3","responseDays":5,"workingDays":true,"graceDays":1,"isActive":true}]}`)
	})
	rules, err := client.ListSlaRules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.True(t, rules[0].CountOnlyWorkingDays)
	require.True(t, rules[0].Active)
}
