package models

// StatusSidecar is the JSON document the backend reads from the `data` query parameter
// on every status change. Nil pointers serialise as explicit nulls.
type StatusSidecar struct {
	ToStatusID  int      `json:"toStatusId"`
	ActorUserID string   `json:"actorUserId"`
	Comment     string   `json:"comment"`
	Adeudo      *float64 `json:"adeudo"`
	Noficio     string   `json:"noficio"`
	Enadeudo    *bool    `json:"enadeudo"`
}

// AbsentMarker is sent in string sidecar fields that carry no data.
const AbsentMarker = "null"

// Permissions is the capability set a role holds over the workflow.
type Permissions struct {
	ChangeType   bool `json:"changeType"`
	ChangeStatus bool `json:"changeStatus"`
	Assign       bool `json:"assign"`
	Finalize     bool `json:"finalize"`
	Deliver      bool `json:"deliver"`
	EditDebt     bool `json:"editDebt"`
	ViewAll      bool `json:"viewAll"`
	Export       bool `json:"export"`
}

// EvidenceUpload is the binary attached to a finalize submission.
type EvidenceUpload struct {
	Filename string
	MimeType string
	Content  []byte
}

// EvidenceFile is evidence fetched back from the backend.
type EvidenceFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
