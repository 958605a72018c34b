package service

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/pkg/config"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
)

// Transition is one edge of the lifecycle graph.
type Transition struct {
	Event string
	Src   models.Status
	Dst   models.Status
}

// Lifecycle lists the only legal edges: RECEIVED -> ASSIGNED -> IN_PROCESS -> FINALIZED -> DELIVERED.
var Lifecycle = []Transition{
	{Event: "assign", Src: models.StatusReceived, Dst: models.StatusAssigned},
	{Event: "start", Src: models.StatusAssigned, Dst: models.StatusInProcess},
	{Event: "finalize", Src: models.StatusInProcess, Dst: models.StatusFinalized},
	{Event: "deliver", Src: models.StatusFinalized, Dst: models.StatusDelivered},
}

// IsLegal reports whether from -> to is an edge of the lifecycle graph.
func IsLegal(from, to models.Status) bool {
	for _, t := range Lifecycle {
		if t.Src == from && t.Dst == to {
			return true
		}
	}
	return false
}

var rolePermissions = map[models.UserRole]models.Permissions{
	models.RoleAdmin: {
		ChangeType: true, ChangeStatus: true, Assign: true, Finalize: true,
		Deliver: true, EditDebt: true, ViewAll: true, Export: true,
	},
	models.RoleLeader: {
		ChangeType: true, ChangeStatus: true, Assign: true, Finalize: true,
		Deliver: true, EditDebt: true, ViewAll: true, Export: true,
	},
	models.RoleAnalyst: {
		ChangeStatus: true, Finalize: true, Deliver: true, EditDebt: true,
	},
	models.RoleFrontDesk: {
		Deliver: true, ViewAll: true,
	},
}

// Permissions is the single source of truth for what a role may do.
func Permissions(role models.UserRole) models.Permissions {
	return rolePermissions[role]
}

// TransitionPolicy decides legality, authority and payload for every workflow change.
type TransitionPolicy struct {
	adminOverride bool
}

// NewTransitionPolicy builds the policy from workflow configuration.
func NewTransitionPolicy(cfg config.WorkflowConfig) *TransitionPolicy {
	return &TransitionPolicy{adminOverride: cfg.AdminOverride}
}

// Allowed reports whether role may move a record from -> to, including the optional ADMIN override.
// The override never reaches DELIVERED except from FINALIZED and never leaves DELIVERED.
func (p *TransitionPolicy) Allowed(role models.UserRole, from, to models.Status) bool {
	if IsLegal(from, to) {
		return true
	}
	if !p.adminOverride || role != models.RoleAdmin {
		return false
	}
	return from != to && from.Valid() && to.Valid() &&
		from != models.StatusDelivered && to != models.StatusDelivered
}

// AuthorizeStatusChange gates the generic status-change path.
// Order: Forbidden, then InvalidTransition, then routing of finalize/assign to their own handlers.
func (p *TransitionPolicy) AuthorizeStatusChange(actor models.Actor, from, to models.Status) error {
	if err := p.AuthorizeStatusRole(actor, to); err != nil {
		return err
	}

	if !to.Valid() || !p.Allowed(actor.Role, from, to) {
		return invalidTransition(from, to)
	}

	switch to {
	case models.StatusFinalized:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "finalize must be submitted with evidence through the finalize action")
	case models.StatusAssigned:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "assignment must be submitted through the assign action")
	}
	return nil
}

// AuthorizeStatusRole checks only whether the role may request a move to target, independent of the current state.
func (p *TransitionPolicy) AuthorizeStatusRole(actor models.Actor, to models.Status) error {
	perms := Permissions(actor.Role)
	switch to {
	case models.StatusDelivered:
		if !perms.Deliver {
			return forbidden(actor, "deliver")
		}
	case models.StatusFinalized:
		if !perms.Finalize {
			return forbidden(actor, "finalize")
		}
	case models.StatusAssigned:
		if !perms.Assign {
			return forbidden(actor, "assign")
		}
	default:
		if !perms.ChangeStatus {
			return forbidden(actor, "change status")
		}
	}
	return nil
}

// AuthorizeFinalize gates the finalize-with-evidence path.
func (p *TransitionPolicy) AuthorizeFinalize(actor models.Actor, from models.Status) error {
	if !Permissions(actor.Role).Finalize {
		return forbidden(actor, "finalize")
	}
	if !p.Allowed(actor.Role, from, models.StatusFinalized) {
		return invalidTransition(from, models.StatusFinalized)
	}
	return nil
}

// AuthorizeAssign gates assignment. Re-assignment resets the status to ASSIGNED but never reopens closed cases.
func (p *TransitionPolicy) AuthorizeAssign(actor models.Actor, from models.Status) error {
	if !Permissions(actor.Role).Assign {
		return forbidden(actor, "assign")
	}
	if from >= models.StatusFinalized {
		return invalidTransition(from, models.StatusAssigned)
	}
	return nil
}

// AuthorizeTypeChange gates reclassification.
func (p *TransitionPolicy) AuthorizeTypeChange(actor models.Actor) error {
	if !Permissions(actor.Role).ChangeType {
		return forbidden(actor, "change type")
	}
	return nil
}

// AuthorizeDebtEdit gates local debt edits, which are only possible before finalization is submitted.
func (p *TransitionPolicy) AuthorizeDebtEdit(actor models.Actor, record models.Tramite, lockAfterEvidence bool) error {
	if !Permissions(actor.Role).EditDebt {
		return forbidden(actor, "edit debt")
	}
	if record.StatusID >= models.StatusFinalized {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "debt can no longer change once the case is finalized")
	}
	if lockAfterEvidence && record.EvidenceRef != "" {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "debt is read-only once evidence has been uploaded")
	}
	return nil
}

// DefaultComment is the history comment used when the caller supplies none.
func DefaultComment(actor models.Actor) string {
	return "changed by " + actor.DisplayName()
}

// commentPolicy strips all markup: history comments are rendered verbatim by the dashboard.
var commentPolicy = bluemonday.StrictPolicy()

// SanitizeComment removes HTML from a free-text history comment and trims it.
func SanitizeComment(comment string) string {
	return strings.TrimSpace(html.UnescapeString(commentPolicy.Sanitize(comment)))
}

func commentOrDefault(comment string, actor models.Actor) string {
	if c := SanitizeComment(comment); c != "" {
		return c
	}
	return DefaultComment(actor)
}

// BuildStatusSidecar produces the payload for a non-finalize transition.
// Optional fields are sent as explicit absence markers, except that a debt-free record with a memo on file carries the memo.
func (p *TransitionPolicy) BuildStatusSidecar(actor models.Actor, record models.Tramite, to models.Status, comment string) models.StatusSidecar {
	sidecar := models.StatusSidecar{
		ToStatusID:  int(to),
		ActorUserID: actor.UserID,
		Comment:     commentOrDefault(comment, actor),
		Noficio:     models.AbsentMarker,
	}
	memo := strings.TrimSpace(record.OfficeMemoNumber)
	if !record.InDebt && memo != "" {
		zero := 0.0
		inDebt := false
		sidecar.Adeudo = &zero
		sidecar.Noficio = memo
		sidecar.Enadeudo = &inDebt
	}
	return sidecar
}

// BuildFinalizeSidecar snapshots the debt fields and memo as of submit time.
func (p *TransitionPolicy) BuildFinalizeSidecar(actor models.Actor, inDebt bool, amount decimal.Decimal, memo, comment string) models.StatusSidecar {
	if !inDebt {
		amount = decimal.Zero
	}
	value := amount.InexactFloat64()
	return models.StatusSidecar{
		ToStatusID:  int(models.StatusFinalized),
		ActorUserID: actor.UserID,
		Comment:     commentOrDefault(comment, actor),
		Adeudo:      &value,
		Noficio:     strings.TrimSpace(memo),
		Enadeudo:    &inDebt,
	}
}

func forbidden(actor models.Actor, action string) error {
	role := string(actor.Role)
	if role == "" {
		role = "unknown"
	}
	return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not %s", role, action))
}

func invalidTransition(from, to models.Status) error {
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move from %s to %s", from.Code(), to.Code()))
}
