package models

import "strings"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleLeader    UserRole = "LEADER"
	RoleAnalyst   UserRole = "ANALYST"
	RoleFrontDesk UserRole = "FRONT_DESK"
)

var roleAliases = map[string]UserRole{
	"ADMIN":      RoleAdmin,
	"LEADER":     RoleLeader,
	"LIDER":      RoleLeader,
	"ANALYST":    RoleAnalyst,
	"ANALISTA":   RoleAnalyst,
	"3":          RoleAnalyst,
	"FRONT_DESK": RoleFrontDesk,
	"VENTANILLA": RoleFrontDesk,
}

// NormalizeRole maps backend role names onto the gateway roles. Unknown roles are returned upper-cased.
func NormalizeRole(raw string) UserRole {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.TrimPrefix(key, "ROLE_")
	key = strings.ReplaceAll(key, " ", "_")
	if role, ok := roleAliases[key]; ok {
		return role
	}
	return UserRole(key)
}

// Actor is the authenticated caller on whose behalf a workflow operation runs.
type Actor struct {
	UserID    string
	Name      string
	Role      UserRole
	SubUnitID int
	SessionID string
	Token     string
}

// DisplayName returns the actor name, falling back to the user id.
func (a Actor) DisplayName() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return a.UserID
}

// Analyst is an assignable user within a sub-unit.
type Analyst struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	SubUnitID int    `json:"subUnitId"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
