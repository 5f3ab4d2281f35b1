package service

import "github.com/bitfantasy/nimo-hr/internal/hr/entity"

// Actor is the authenticated caller. Every authorization decision is made
// from this value; services never look up a session.
type Actor struct {
	EmployeeID         string
	Roles              []string
	ManagedDepartments []string
}

func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool {
	return a.HasRole(entity.RoleAdmin)
}

// IsManager reports whether the actor holds any approver role or is an admin.
func (a Actor) IsManager() bool {
	return a.IsAdmin() || a.HasRole(entity.RolePM) || a.HasRole(entity.RoleDM) || a.HasRole(entity.RoleGM)
}

// Manages reports whether departmentID is one of the actor's departments.
func (a Actor) Manages(departmentID string) bool {
	for _, d := range a.ManagedDepartments {
		if d == departmentID {
			return true
		}
	}
	return false
}

// ApproverRoles returns the pipeline stages the actor may act on.
func (a Actor) ApproverRoles() []string {
	if a.IsAdmin() {
		return append([]string(nil), entity.ApprovalStages...)
	}
	var out []string
	for _, stage := range entity.ApprovalStages {
		if a.HasRole(stage) {
			out = append(out, stage)
		}
	}
	return out
}
