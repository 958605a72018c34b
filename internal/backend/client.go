package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/pkg/config"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
)

const (
	// StatusSessionExpired and StatusLoginTimeout are the non-standard codes the backend uses for dead sessions.
	StatusSessionExpired = 419
	StatusLoginTimeout   = 440

	maxErrorBody = 4 << 10
)

var authEndpoint = regexp.MustCompile(`/auth/(me|login|refresh|logout)(\?|$)`)

// Observer receives one observation per backend call.
type Observer interface {
	ObserveBackendCall(operation string, status int, duration time.Duration)
}

// Client talks to the authoritative trámites REST backend on behalf of the caller.
type Client struct {
	baseURL  string
	http     *http.Client
	location *time.Location
	logger   *zap.Logger
	observer Observer
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(cl *Client) {
		cl.observer = o
	}
}

// WithLocation sets the zone used for backend timestamps that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(cl *Client) {
		if loc != nil {
			cl.location = loc
		}
	}
}

// NewClient constructs a backend client.
func NewClient(cfg config.BackendConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		location: time.UTC,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search lists trámites matching the filter.
func (c *Client) Search(ctx context.Context, filter models.TramiteFilter) (models.TramitePage, error) {
	params := url.Values{}
	if filter.SubUnitID != nil {
		params.Set("subWorkUnitId", strconv.Itoa(*filter.SubUnitID))
	}
	if filter.StatusID != nil {
		params.Set("statusId", strconv.Itoa(int(*filter.StatusID)))
	}
	if filter.AssignedTo != "" {
		params.Set("assignedTo", filter.AssignedTo)
	}
	if filter.Assigned != nil {
		params.Set("assigned", strconv.FormatBool(*filter.Assigned))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		params.Set("q", q)
	}
	params.Set("page", strconv.Itoa(filter.Page))
	params.Set("size", strconv.Itoa(filter.Size))

	var page wirePage[wireTramite]
	if err := c.doJSON(ctx, "search", http.MethodGet, "/api/tramites/search", params, nil, &page); err != nil {
		return models.TramitePage{}, err
	}
	records := make([]models.Tramite, 0, len(page.Content))
	for _, w := range page.Content {
		records = append(records, w.toModel(c.location))
	}
	return models.TramitePage{
		Records:    records,
		TotalCount: page.TotalElements,
		Page:       page.Number,
		Size:       page.Size,
	}, nil
}

// GetFull fetches a trámite's detail, history and documents.
func (c *Client) GetFull(ctx context.Context, folio string) (models.TramiteFull, error) {
	var full wireFull
	if err := c.doJSON(ctx, "get_full", http.MethodGet, "/api/tramites/"+url.PathEscape(folio)+"/full", nil, nil, &full); err != nil {
		return models.TramiteFull{}, err
	}
	return full.toModel(c.location), nil
}

// ChangeType reclassifies a trámite.
func (c *Client) ChangeType(ctx context.Context, folio string, newTypeID int, comment string) error {
	body := map[string]interface{}{"newTypeId": newTypeID, "comment": comment}
	return c.doJSON(ctx, "change_type", http.MethodPatch, "/api/tramites/type/"+url.PathEscape(folio)+"/change-type", nil, body, nil)
}

// ChangeStatus submits a non-finalize status change. The sidecar travels in the `data` query parameter.
func (c *Client) ChangeStatus(ctx context.Context, folio string, sidecar models.StatusSidecar) error {
	params, err := sidecarParams(sidecar)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, "change_status", http.MethodPatch, statusPath(folio), params, map[string]interface{}{}, nil)
}

// ChangeStatusWithEvidence submits the finalize transition as multipart with the binary in field `evidencia`.
func (c *Client) ChangeStatusWithEvidence(ctx context.Context, folio string, sidecar models.StatusSidecar, evidence models.EvidenceUpload) error {
	params, err := sidecarParams(sidecar)
	if err != nil {
		return err
	}

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="evidencia"; filename=%q`, evidence.Filename))
	contentType := evidence.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create evidence part: %w", err)
	}
	if _, err := part.Write(evidence.Content); err != nil {
		return fmt.Errorf("write evidence part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	resp, err := c.do(ctx, "finalize", http.MethodPatch, statusPath(folio), params, buf, writer.FormDataContentType())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// Assign hands the trámite to an analyst and moves it to ASSIGNED.
func (c *Client) Assign(ctx context.Context, folio, assigneeUserID, comment string) (models.AssignmentResult, error) {
	body := map[string]interface{}{
		"assigneeUserId": assigneeUserID,
		"comment":        comment,
		"newStatusId":    int(models.StatusAssigned),
	}
	var res wireAssignment
	if err := c.doJSON(ctx, "assign", http.MethodPatch, "/api/tramites/tickets/"+url.PathEscape(folio)+"/assign", nil, body, &res); err != nil {
		return models.AssignmentResult{}, err
	}
	return res.toModel(c.location), nil
}

// GetEvidence downloads the evidence binary of a finalized trámite.
func (c *Client) GetEvidence(ctx context.Context, folio string, inline bool) (models.EvidenceFile, error) {
	params := url.Values{"inline": []string{strconv.FormatBool(inline)}}
	resp, err := c.do(ctx, "get_evidence", http.MethodGet, "/api/tramites/"+url.PathEscape(folio)+"/evidencia", params, nil, "")
	if err != nil {
		return models.EvidenceFile{}, err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.EvidenceFile{}, appErrors.Wrap(err, appErrors.ErrNetworkFailure.Code, appErrors.ErrNetworkFailure.Status, "read evidence body")
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return models.EvidenceFile{
		Filename:    FilenameFromDisposition(resp.Header.Get("Content-Disposition"), "evidencia-"+folio),
		ContentType: contentType,
		Content:     content,
	}, nil
}

// ListAnalysts returns the analysts of a sub-unit.
func (c *Client) ListAnalysts(ctx context.Context, subUnitID int) ([]models.Analyst, error) {
	params := url.Values{}
	params.Set("subWorkUnitId", strconv.Itoa(subUnitID))
	params.Set("onlyAnalysts", "true")
	params.Set("page", "0")
	params.Set("size", "200")

	var raw json.RawMessage
	if err := c.doJSON(ctx, "list_analysts", http.MethodGet, "/api/users/by-subarea", params, nil, &raw); err != nil {
		return nil, err
	}
	users, err := decodeList[wireAnalyst](raw)
	if err != nil {
		return nil, err
	}
	analysts := make([]models.Analyst, 0, len(users))
	for _, u := range users {
		analysts = append(analysts, u.toModel())
	}
	return analysts, nil
}

// ListTypes returns the trámite type catalog.
func (c *Client) ListTypes(ctx context.Context) ([]models.TramiteType, error) {
	params := url.Values{"size": []string{"100"}}
	var raw json.RawMessage
	if err := c.doJSON(ctx, "list_types", http.MethodGet, "/api/catalogs", params, nil, &raw); err != nil {
		return nil, err
	}
	items, err := decodeList[wireType](raw)
	if err != nil {
		return nil, err
	}
	types := make([]models.TramiteType, 0, len(items))
	for _, it := range items {
		types = append(types, models.TramiteType{ID: it.ID, Label: it.DescArea})
	}
	return types, nil
}

// ListSlaRules returns the document SLA catalog.
func (c *Client) ListSlaRules(ctx context.Context) ([]models.SlaRule, error) {
	params := url.Values{"size": []string{"200"}}
	var raw json.RawMessage
	if err := c.doJSON(ctx, "list_sla_rules", http.MethodGet, "/api/document-slas", params, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[models.SlaRule](raw)
}

func statusPath(folio string) string {
	return "/api/tramites/" + url.PathEscape(folio) + "/status"
}

func sidecarParams(sidecar models.StatusSidecar) (url.Values, error) {
	encoded, err := json.Marshal(sidecar)
	if err != nil {
		return nil, fmt.Errorf("encode status sidecar: %w", err)
	}
	return url.Values{"data": []string{string(encoded)}}, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, params url.Values, body interface{}, dest interface{}) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	resp, err := c.do(ctx, op, method, path, params, reader, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil && err != io.EOF {
		return appErrors.Wrap(err, appErrors.ErrNetworkFailure.Code, appErrors.ErrNetworkFailure.Status, fmt.Sprintf("decode %s response", op))
	}
	return nil
}

// do executes one request and maps non-2xx responses to typed errors. The caller closes the body on success.
func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body io.Reader, contentType string) (*http.Response, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.observe(op, 0, duration)
		c.logger.Warn("backend request failed", zap.String("operation", op), zap.String("path", path), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrNetworkFailure.Code, appErrors.ErrNetworkFailure.Status, appErrors.ErrNetworkFailure.Message)
	}
	c.observe(op, resp.StatusCode, duration)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	mapped := mapStatus(path, resp.StatusCode, extractMessage(raw))
	c.logger.Debug("backend rejected request",
		zap.String("operation", op),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("code", mapped.Code),
	)
	return nil, mapped
}

func (c *Client) observe(op string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveBackendCall(op, status, d)
	}
}

func mapStatus(path string, status int, message string) *appErrors.Error {
	var base *appErrors.Error
	switch {
	case status == StatusSessionExpired || status == StatusLoginTimeout:
		base = appErrors.ErrSessionExpired
	case status == http.StatusUnauthorized && authEndpoint.MatchString(path):
		base = appErrors.ErrSessionExpired
	case status == http.StatusNotFound:
		base = appErrors.ErrNotFound
	default:
		base = appErrors.ErrNetworkFailure
	}
	return appErrors.Clone(base, message)
}

func extractMessage(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
		return ""
	}
	return trimmed
}

var (
	dispositionExtended = regexp.MustCompile(`(?i)filename\*\s*=\s*UTF-8''([^;]+)`)
	dispositionPlain    = regexp.MustCompile(`(?i)filename\s*=\s*"?([^";]+)"?`)
)

// FilenameFromDisposition extracts the download filename, preferring the RFC 5987 form.
func FilenameFromDisposition(header, fallback string) string {
	if m := dispositionExtended.FindStringSubmatch(header); len(m) == 2 {
		if decoded, err := url.PathUnescape(strings.TrimSpace(m[1])); err == nil && decoded != "" {
			return decoded
		}
	}
	if m := dispositionPlain.FindStringSubmatch(header); len(m) == 2 {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}
	return fallback
}
