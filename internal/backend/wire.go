package backend

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/tramites-gateway/internal/models"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
)

type wirePage[T any] struct {
	Content       []T `json:"content"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
	Size          int `json:"size"`
}

// decodeList accepts either a paged `{content: [...]}` document or a bare array.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, decodeError(err)
		}
		return items, nil
	}
	var page wirePage[T]
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, decodeError(err)
	}
	if page.Content == nil {
		return []T{}, nil
	}
	return page.Content, nil
}

func decodeError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrNetworkFailure.Code, appErrors.ErrNetworkFailure.Status, "unexpected backend payload")
}

type wireTramite struct {
	ID              int64            `json:"id"`
	Folio           string           `json:"folio"`
	TramiteTypeID   int              `json:"tramiteTypeId"`
	TramiteTypeDesc string           `json:"tramiteTypeDesc"`
	StatusID        int              `json:"statusId"`
	StatusDesc      string           `json:"statusDesc"`
	RequesterID     string           `json:"requesterId"`
	RequesterName   *string          `json:"requesterName"`
	SubWorkUnitID   int              `json:"subWorkUnitId"`
	CreatedAt       string           `json:"createdAt"`
	AssignedTo      *string          `json:"assignedTo"`
	AssignedToName  *string          `json:"assignedToName"`
	AssignedBy      *string          `json:"assignedBy"`
	AssignedByName  *string          `json:"assignedByName"`
	AssignedAt      *string          `json:"assignedAt"`
	DocsCount       int              `json:"docsCount"`
	EnAdeudo        *bool            `json:"enAdeudo"`
	Adeudo          *decimal.Decimal `json:"adeudo"`
	Noficio         *string          `json:"noficio"`
	EvidenceName    *string          `json:"evidenceName"`
}

func (w wireTramite) toModel(loc *time.Location) models.Tramite {
	status := models.Status(w.StatusID)
	if !status.Valid() {
		if parsed, ok := models.ParseStatusLabel(w.StatusDesc); ok {
			status = parsed
		}
	}
	t := models.Tramite{
		ID:               w.ID,
		Folio:            w.Folio,
		TypeID:           w.TramiteTypeID,
		TypeDesc:         w.TramiteTypeDesc,
		StatusID:         status,
		StatusDesc:       w.StatusDesc,
		RequesterID:      w.RequesterID,
		RequesterName:    str(w.RequesterName),
		SubUnitID:        w.SubWorkUnitID,
		AssignedTo:       str(w.AssignedTo),
		AssignedToName:   str(w.AssignedToName),
		AssignedBy:       str(w.AssignedBy),
		AssignedByName:   str(w.AssignedByName),
		AssignedAt:       parseTime(str(w.AssignedAt), loc),
		DocsCount:        w.DocsCount,
		OfficeMemoNumber: str(w.Noficio),
		EvidenceRef:      str(w.EvidenceName),
	}
	if t.StatusDesc == "" {
		t.StatusDesc = status.Label()
	}
	if created := parseTime(w.CreatedAt, loc); created != nil {
		t.CreatedAt = *created
	}
	if w.EnAdeudo != nil {
		t.InDebt = *w.EnAdeudo
	}
	if w.Adeudo != nil {
		t.DebtAmount = *w.Adeudo
	}
	return t
}

type wireHistory struct {
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
	ChangedBy  string `json:"changedBy"`
	ChangedAt  string `json:"changedAt"`
	Comment    string `json:"comment"`
}

type wireDetail struct {
	Folio         string        `json:"folio"`
	TramiteType   string        `json:"tramiteType"`
	UserID        string        `json:"userId"`
	UserName      string        `json:"userName"`
	CurrentStatus string        `json:"currentStatus"`
	CreatedAt     string        `json:"createdAt"`
	History       []wireHistory `json:"history"`
}

type wireDoc struct {
	ID           int64  `json:"id"`
	DocTypeID    int    `json:"docTypeId"`
	DocTypeDesc  string `json:"docTypeDesc"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	SizeBytes    int64  `json:"sizeBytes"`
	UploadedAt   string `json:"uploadedAt"`
	DownloadURL  string `json:"downloadUrl"`
}

type wireFull struct {
	History wireDetail `json:"history"`
	Docs    []wireDoc  `json:"docs"`
}

func (w wireFull) toModel(loc *time.Location) models.TramiteFull {
	detail := models.TramiteDetail{
		Folio:         w.History.Folio,
		TypeDesc:      w.History.TramiteType,
		UserID:        w.History.UserID,
		UserName:      w.History.UserName,
		CurrentStatus: w.History.CurrentStatus,
		History:       make([]models.HistoryEvent, 0, len(w.History.History)),
	}
	if created := parseTime(w.History.CreatedAt, loc); created != nil {
		detail.CreatedAt = *created
	}
	for _, h := range w.History.History {
		ev := models.HistoryEvent{
			FromStatus: h.FromStatus,
			ToStatus:   h.ToStatus,
			ChangedBy:  h.ChangedBy,
			Comment:    h.Comment,
		}
		if at := parseTime(h.ChangedAt, loc); at != nil {
			ev.ChangedAt = *at
		}
		detail.History = append(detail.History, ev)
	}

	docs := make([]models.TramiteDoc, 0, len(w.Docs))
	for _, d := range w.Docs {
		doc := models.TramiteDoc{
			ID:           d.ID,
			DocTypeID:    d.DocTypeID,
			DocTypeDesc:  d.DocTypeDesc,
			OriginalName: d.OriginalName,
			MimeType:     d.MimeType,
			SizeBytes:    d.SizeBytes,
			DownloadURL:  d.DownloadURL,
		}
		if at := parseTime(d.UploadedAt, loc); at != nil {
			doc.UploadedAt = *at
		}
		docs = append(docs, doc)
	}
	return models.TramiteFull{Detail: detail, Documents: docs}
}

type wireAssignment struct {
	AssigneeID     *string `json:"assigneeId"`
	AssigneeUserID *string `json:"assigneeUserId"`
	AssigneeName   *string `json:"assigneeName"`
	AssignedBy     *string `json:"assignedBy"`
	AssignedByName *string `json:"assignedByName"`
	AssignedAt     *string `json:"assignedAt"`
}

func (w wireAssignment) toModel(loc *time.Location) models.AssignmentResult {
	assignee := str(w.AssigneeID)
	if assignee == "" {
		assignee = str(w.AssigneeUserID)
	}
	return models.AssignmentResult{
		AssigneeID:     assignee,
		AssigneeName:   str(w.AssigneeName),
		AssignedBy:     str(w.AssignedBy),
		AssignedByName: str(w.AssignedByName),
		AssignedAt:     parseTime(str(w.AssignedAt), loc),
	}
}

type wireAnalyst struct {
	UserID        string  `json:"userId"`
	FullName      *string `json:"fullName"`
	Name          *string `json:"name"`
	SubWorkUnitID int     `json:"subWorkUnitId"`
}

func (w wireAnalyst) toModel() models.Analyst {
	name := str(w.FullName)
	if name == "" {
		name = str(w.Name)
	}
	if name == "" {
		name = w.UserID
	}
	return models.Analyst{UserID: w.UserID, Name: name, SubUnitID: w.SubWorkUnitID}
}

type wireType struct {
	ID       int    `json:"id"`
	DescArea string `json:"descArea"`
}

// str dereferences optional strings, treating the backend's "null" marker as empty.
func str(p *string) string {
	if p == nil {
		return ""
	}
	v := strings.TrimSpace(*p)
	if v == models.AbsentMarker {
		return ""
	}
	return v
}

var zonedLayouts = []string{time.RFC3339Nano, time.RFC3339}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime accepts the timestamp shapes the backend emits; values without an offset are read in loc.
func parseTime(raw string, loc *time.Location) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == models.AbsentMarker {
		return nil
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return &t
		}
	}
	return nil
}
