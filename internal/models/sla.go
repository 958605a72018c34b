package models

import "time"

// SlaLabel is the tri-state (plus unknown) SLA classification.
type SlaLabel string

const (
	SlaOnTime  SlaLabel = "ON_TIME"
	SlaNearDue SlaLabel = "NEAR_DUE"
	SlaOverdue SlaLabel = "OVERDUE"
	SlaUnknown SlaLabel = "UNKNOWN"
)

// SlaRule is the response-time rule configured for a document type.
type SlaRule struct {
	ID                   int64  `json:"id"`
	Code                 string `json:"code"`
	Name                 string `json:"name"`
	ResponseDays         int    `json:"responseDays"`
	CountOnlyWorkingDays bool   `json:"workingDays"`
	GraceDays            int    `json:"graceDays"`
	Active               bool   `json:"isActive"`
}

// SlaResult is the derived due date and label of a case.
type SlaResult struct {
	DueDate       *time.Time
	RemainingDays *int
	Label         SlaLabel
}
