package services

import (
	"casetrack-backend/models"
)

// Action is an operation subject to the authorization matrix
type Action string

const (
	ActionCreate                Action = "create"
	ActionRead                  Action = "read"
	ActionUpdate                Action = "update"
	ActionAssignTechnician      Action = "assign_technician"
	ActionAddTroubleshooting    Action = "add_troubleshooting"
	ActionMarkForConversion     Action = "mark_for_conversion"
	ActionConvertToRMA          Action = "convert_to_rma"
	ActionAssignTechnicalHead   Action = "assign_technical_head"
	ActionFinalizeTechnicalHead Action = "finalize_technical_head"
	ActionUploadFiles           Action = "upload_files"
	ActionBulkImport            Action = "bulk_import"
	ActionBulkDelete            Action = "bulk_delete"
)

// PermissionUpdateDTR lets holders use the generic update regardless of role
const PermissionUpdateDTR = "dtr:update"

// Rule describes who may perform an action. Roles act unconditionally;
// AssigneeRoles only when they are the case's current assignee.
type Rule struct {
	Roles         []models.Role
	AssigneeRoles []models.Role
	Permission    string
}

var fieldRoles = []models.Role{models.RoleTechnician, models.RoleEngineer}

// Matrix is the role x action table
var Matrix = map[Action]Rule{
	ActionCreate: {
		Roles: []models.Role{models.RoleAdmin, models.RoleRMAManager},
	},
	ActionRead: {
		Roles: []models.Role{
			models.RoleAdmin, models.RoleRMAManager, models.RoleRMAHandler,
			models.RoleTechnicalHead, models.RoleTechnician, models.RoleEngineer, models.RoleViewer,
		},
	},
	ActionUpdate: {
		Roles:         []models.Role{models.RoleAdmin, models.RoleRMAManager, models.RoleRMAHandler, models.RoleTechnicalHead},
		AssigneeRoles: fieldRoles,
		Permission:    PermissionUpdateDTR,
	},
	ActionAssignTechnician: {
		Roles: []models.Role{models.RoleAdmin, models.RoleRMAManager},
	},
	ActionAddTroubleshooting: {
		Roles:         []models.Role{models.RoleAdmin},
		AssigneeRoles: fieldRoles,
	},
	ActionMarkForConversion: {
		Roles:         []models.Role{models.RoleAdmin, models.RoleRMAManager},
		AssigneeRoles: fieldRoles,
	},
	ActionConvertToRMA: {
		Roles:         []models.Role{models.RoleAdmin, models.RoleRMAManager},
		AssigneeRoles: fieldRoles,
	},
	ActionAssignTechnicalHead: {
		Roles: []models.Role{models.RoleAdmin, models.RoleRMAHandler},
	},
	ActionFinalizeTechnicalHead: {
		Roles: []models.Role{models.RoleAdmin, models.RoleTechnicalHead},
	},
	ActionUploadFiles: {
		Roles: []models.Role{models.RoleAdmin, models.RoleRMAHandler, models.RoleTechnicalHead},
	},
	ActionBulkImport: {
		Roles: []models.Role{models.RoleAdmin, models.RoleRMAManager},
	},
	ActionBulkDelete: {
		Roles: []models.Role{models.RoleAdmin},
	},
}

// Authorize decides whether actor may perform action on dtr. dtr may be nil
// for actions that do not target an existing case; assignee-scoped grants
// never apply then.
func Authorize(actor *models.Actor, action Action, dtr *models.DTR) error {
	if actor == nil || actor.Role == "" {
		return models.NewUnauthorizedError("no authenticated actor for %s", action)
	}

	rule, ok := Matrix[action]
	if !ok {
		return models.NewUnauthorizedError("unknown action %s", action)
	}

	if hasRole(rule.Roles, actor.Role) {
		return nil
	}
	if rule.Permission != "" && actor.HasPermission(rule.Permission) {
		return nil
	}
	if hasRole(rule.AssigneeRoles, actor.Role) {
		if dtr != nil && dtr.AssignedTo.Matches(actor) {
			return nil
		}
		err := models.NewUnauthorizedError("%s %s is not assigned to this case", actor.Role, actor.DisplayName())
		if dtr != nil {
			err.CaseID = dtr.CaseID
		}
		return err
	}

	err := models.NewUnauthorizedError("role %s may not %s", actor.Role, action)
	if dtr != nil {
		err.CaseID = dtr.CaseID
	}
	return err
}

func hasRole(roles []models.Role, role models.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
