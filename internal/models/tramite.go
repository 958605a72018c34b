package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tramite is a document-processing case as held in the worklist.
type Tramite struct {
	ID             int64      `json:"id"`
	Folio          string     `json:"folio"`
	TypeID         int        `json:"typeId"`
	TypeDesc       string     `json:"typeDesc"`
	StatusID       Status     `json:"statusId"`
	StatusDesc     string     `json:"statusDesc"`
	RequesterID    string     `json:"requesterId"`
	RequesterName  string     `json:"requesterName,omitempty"`
	SubUnitID      int        `json:"subUnitId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	AssignedTo     string     `json:"assignedTo,omitempty"`
	AssignedToName string     `json:"assignedToName,omitempty"`
	AssignedBy     string     `json:"assignedBy,omitempty"`
	AssignedByName string     `json:"assignedByName,omitempty"`
	AssignedAt     *time.Time `json:"assignedAt,omitempty"`
	DocsCount      int        `json:"docsCount"`

	InDebt           bool            `json:"inDebt"`
	DebtAmount       decimal.Decimal `json:"debtAmount"`
	DebtEdited       bool            `json:"debtEdited"`
	OfficeMemoNumber string          `json:"officeMemoNumber,omitempty"`
	EvidenceRef      string          `json:"evidenceRef,omitempty"`

	DueDate       *time.Time `json:"dueDate,omitempty"`
	RemainingDays *int       `json:"remainingDays,omitempty"`
	SlaLabel      SlaLabel   `json:"slaLabel"`

	AssignmentState AssignmentState `json:"assignmentState,omitempty"`
	AssignmentOpID  string          `json:"assignmentOperationId,omitempty"`
	Revision        int64           `json:"revision"`
}

// EffectiveDebt is the debt amount that counts: zero whenever the case is not in debt.
func (t Tramite) EffectiveDebt() decimal.Decimal {
	if !t.InDebt {
		return decimal.Zero
	}
	return t.DebtAmount
}

// DebtDraft is a session's debt edit that has not been submitted yet.
type DebtDraft struct {
	InDebt     bool
	DebtAmount decimal.Decimal
}

// Apply overlays the draft on t. Drafts stop counting once the case is finalized.
func (d DebtDraft) Apply(t *Tramite) {
	if t.StatusID >= StatusFinalized {
		return
	}
	t.InDebt = d.InDebt
	t.DebtAmount = d.DebtAmount
	t.DebtEdited = true
}

// HistoryEvent is one append-only audit entry produced by a transition.
type HistoryEvent struct {
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	ChangedBy  string    `json:"changedBy"`
	ChangedAt  time.Time `json:"changedAt"`
	Comment    string    `json:"comment"`
}

// TramiteDetail carries the full header and history of a case.
type TramiteDetail struct {
	Folio         string         `json:"folio"`
	TypeDesc      string         `json:"tramiteType"`
	UserID        string         `json:"userId"`
	UserName      string         `json:"userName"`
	CurrentStatus string         `json:"currentStatus"`
	CreatedAt     time.Time      `json:"createdAt"`
	History       []HistoryEvent `json:"history"`
}

// LatestTransitionTo scans history most-recent-first for an event entering target.
func (d TramiteDetail) LatestTransitionTo(target Status) (HistoryEvent, bool) {
	for i := len(d.History) - 1; i >= 0; i-- {
		ev := d.History[i]
		if s, ok := ParseStatusLabel(ev.ToStatus); ok && s == target {
			return ev, true
		}
	}
	return HistoryEvent{}, false
}

// TramiteDoc describes an uploaded document attached to a case.
type TramiteDoc struct {
	ID           int64     `json:"id"`
	DocTypeID    int       `json:"docTypeId"`
	DocTypeDesc  string    `json:"docTypeDesc"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	UploadedAt   time.Time `json:"uploadedAt"`
	DownloadURL  string    `json:"downloadUrl"`
}

// TramiteFull bundles detail and documents.
type TramiteFull struct {
	Detail    TramiteDetail `json:"detail"`
	Documents []TramiteDoc  `json:"documents"`
}

// TramiteFilter constrains backend searches.
type TramiteFilter struct {
	SubUnitID  *int
	StatusID   *Status
	AssignedTo string
	Assigned   *bool
	Query      string
	Page       int
	Size       int
}

// TramitePage is one page of search results.
type TramitePage struct {
	Records    []Tramite `json:"records"`
	TotalCount int       `json:"totalCount"`
	Page       int       `json:"page"`
	Size       int       `json:"size"`
}

// TramiteType is a catalog classification.
type TramiteType struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}
