package dto

// SearchQuery mirrors the supported worklist filters.
type SearchQuery struct {
	SubUnitID  *int   `form:"subUnitId" validate:"omitempty,gt=0"`
	StatusID   *int   `form:"statusId" validate:"omitempty,min=1,max=5"`
	AssignedTo string `form:"assignedTo" validate:"omitempty,max=64"`
	Assigned   *bool  `form:"assigned"`
	Query      string `form:"q" validate:"omitempty,max=120"`
	Page       int    `form:"page" validate:"omitempty,min=0"`
	Size       int    `form:"size" validate:"omitempty,min=1,max=200"`
}

// ChangeStatusRequest requests a generic (non-finalize, non-assign) transition.
type ChangeStatusRequest struct {
	ToStatusID int    `json:"toStatusId" validate:"required,min=1,max=5"`
	Comment    string `json:"comment" validate:"omitempty,max=500"`
}

// ChangeTypeRequest reclassifies a trámite.
type ChangeTypeRequest struct {
	NewTypeID int    `json:"newTypeId" validate:"required,gt=0"`
	Comment   string `json:"comment" validate:"omitempty,max=500"`
}

// EditDebtRequest edits the local debt fields; each is optional.
type EditDebtRequest struct {
	InDebt     *bool   `json:"inDebt"`
	DebtAmount *string `json:"debtAmount" validate:"omitempty,max=32"`
}

// AssignRequest hands a folio to an analyst.
type AssignRequest struct {
	AssigneeUserID string `json:"assigneeUserId" validate:"required,max=64"`
	Comment        string `json:"comment" validate:"omitempty,max=500"`
}

// FinalizeForm is the multipart form of a finalize submission; the file travels as "evidencia".
type FinalizeForm struct {
	OfficeMemoNumber string  `form:"officeMemoNumber" validate:"omitempty,max=64"`
	InDebt           *bool   `form:"inDebt"`
	DebtAmount       *string `form:"debtAmount" validate:"omitempty,max=32"`
	Comment          string  `form:"comment" validate:"omitempty,max=500"`
}

// OpenEvidenceRequest asks for a transient evidence handle.
type OpenEvidenceRequest struct {
	Inline bool `json:"inline"`
}
