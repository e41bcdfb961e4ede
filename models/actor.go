package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role of an authenticated caller
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleRMAManager    Role = "rma_manager"
	RoleRMAHandler    Role = "rma_handler"
	RoleTechnicalHead Role = "technical_head"
	RoleTechnician    Role = "technician"
	RoleEngineer      Role = "engineer"
	RoleViewer        Role = "viewer"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleRMAManager, RoleRMAHandler, RoleTechnicalHead, RoleTechnician, RoleEngineer, RoleViewer:
		return true
	}
	return false
}

// Actor is the already-authenticated caller of an engine operation.
type Actor struct {
	UserID      string   `json:"userId"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Role        Role     `json:"role"`
	Designation string   `json:"designation,omitempty"`
	Contact     string   `json:"contact,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// DisplayName falls back to the user id when no name was supplied.
func (a *Actor) DisplayName() string {
	if a == nil {
		return ""
	}
	if a.Name != "" {
		return a.Name
	}
	return a.UserID
}

func (a *Actor) HasPermission(permission string) bool {
	if a == nil {
		return false
	}
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Assignee is the current owner of a case.
type Assignee struct {
	UserID       string    `json:"userId,omitempty" dynamodbav:"userId,omitempty"`
	Name         string    `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Role         Role      `json:"role,omitempty" dynamodbav:"role,omitempty"`
	AssignedDate time.Time `json:"assignedDate" dynamodbav:"assignedDate"`
}

// Matches reports whether actor is this assignee. Legacy assignments that
// only carry a name are matched on the name.
func (a *Assignee) Matches(actor *Actor) bool {
	if a == nil || actor == nil {
		return false
	}
	if a.UserID != "" {
		return a.UserID == actor.UserID
	}
	return a.Name != "" && strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(actor.Name))
}

func (a *Assignee) String() string {
	if a == nil {
		return ""
	}
	if a.Name != "" && a.UserID != "" {
		return fmt.Sprintf("%s (%s)", a.Name, a.UserID)
	}
	if a.Name != "" {
		return a.Name
	}
	return a.UserID
}

// AssigneeInput accepts either the legacy plain string form ("T1") or the
// object form ({"userId": "...", "name": "...", "role": "..."}).
type AssigneeInput struct {
	UserID string `json:"userId,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   Role   `json:"role,omitempty"`
	Legacy bool   `json:"-"`
}

func (in *AssigneeInput) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*in = AssigneeInput{Name: strings.TrimSpace(name), Legacy: true}
		return nil
	}

	type object AssigneeInput
	var obj object
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("assignee must be a string or an object: %w", err)
	}
	*in = AssigneeInput(obj)
	in.UserID = strings.TrimSpace(in.UserID)
	in.Name = strings.TrimSpace(in.Name)
	return nil
}

func (in *AssigneeInput) IsEmpty() bool {
	return in == nil || (in.UserID == "" && in.Name == "")
}

// Normalize converts the input into the canonical assignee. defaultRole is
// used when the caller did not say which role the assignee holds.
func (in *AssigneeInput) Normalize(defaultRole Role, at time.Time) *Assignee {
	if in.IsEmpty() {
		return nil
	}
	role := in.Role
	if role == "" {
		role = defaultRole
	}
	return &Assignee{
		UserID:       in.UserID,
		Name:         in.Name,
		Role:         role,
		AssignedDate: at,
	}
}
