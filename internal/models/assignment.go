package models

import "time"

// AssignmentState tracks the lifecycle of one assignment operation.
type AssignmentState string

const (
	AssignmentPending   AssignmentState = "pending"
	AssignmentConfirmed AssignmentState = "confirmed"
	AssignmentFailed    AssignmentState = "failed"
	AssignmentReverted  AssignmentState = "reverted"
)

// AssignmentOperation is a journaled assign attempt for a folio.
type AssignmentOperation struct {
	ID               string          `db:"id" json:"id"`
	Folio            string          `db:"folio" json:"folio"`
	AssigneeID       string          `db:"assignee_id" json:"assigneeId"`
	AssigneeName     string          `db:"assignee_name" json:"assigneeName"`
	ActorID          string          `db:"actor_id" json:"actorId"`
	State            AssignmentState `db:"state" json:"state"`
	ErrorMessage     *string         `db:"error_message" json:"errorMessage,omitempty"`
	PreviousSnapshot []byte          `db:"previous_snapshot" json:"-"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	ResolvedAt       *time.Time      `db:"resolved_at" json:"resolvedAt,omitempty"`
}

// AssignmentSnapshot captures the assignment fields of a record before an optimistic update.
type AssignmentSnapshot struct {
	StatusID       Status     `json:"statusId"`
	StatusDesc     string     `json:"statusDesc"`
	AssignedTo     string     `json:"assignedTo"`
	AssignedToName string     `json:"assignedToName"`
	AssignedBy     string     `json:"assignedBy"`
	AssignedByName string     `json:"assignedByName"`
	AssignedAt     *time.Time `json:"assignedAt"`
}

// SnapshotAssignment copies the assignment-related fields of t.
func SnapshotAssignment(t Tramite) AssignmentSnapshot {
	return AssignmentSnapshot{
		StatusID:       t.StatusID,
		StatusDesc:     t.StatusDesc,
		AssignedTo:     t.AssignedTo,
		AssignedToName: t.AssignedToName,
		AssignedBy:     t.AssignedBy,
		AssignedByName: t.AssignedByName,
		AssignedAt:     t.AssignedAt,
	}
}

// Restore writes the snapshot back onto t.
func (s AssignmentSnapshot) Restore(t *Tramite) {
	t.StatusID = s.StatusID
	t.StatusDesc = s.StatusDesc
	t.AssignedTo = s.AssignedTo
	t.AssignedToName = s.AssignedToName
	t.AssignedBy = s.AssignedBy
	t.AssignedByName = s.AssignedByName
	t.AssignedAt = s.AssignedAt
}

// AssignmentResult is the authoritative backend response to an assign call.
type AssignmentResult struct {
	AssigneeID     string     `json:"assigneeId"`
	AssigneeName   string     `json:"assigneeName"`
	AssignedBy     string     `json:"assignedBy"`
	AssignedByName string     `json:"assignedByName"`
	AssignedAt     *time.Time `json:"assignedAt"`
}

// AssignmentOutcome pairs an operation with the record it produced.
type AssignmentOutcome struct {
	Operation AssignmentOperation `json:"operation"`
	Record    Tramite             `json:"record"`
}
