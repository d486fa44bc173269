// Package rbac decides which group-scoped actions a user may perform.
package rbac

import (
	"fmt"

	"github.com/NicolasHaas/sosmeet/pkg/model"
)

// permissionMatrix maps group roles to their allowed permissions.
var permissionMatrix = map[model.GroupRole]map[model.Permission]bool{
	model.RoleOwner: {
		model.PermAddMember:       true,
		model.PermCreateAlarmCode: true,
		model.PermTriggerAlarm:    true,
		model.PermViewPresence:    true,
	},
	model.RoleMember: {
		model.PermAddMember:       true,
		model.PermCreateAlarmCode: true,
		model.PermTriggerAlarm:    true,
		model.PermViewPresence:    true,
	},
	model.RoleOutsider: {
		// Outsiders can neither see nor change a group.
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role model.GroupRole, perm model.Permission) bool {
	perms, ok := permissionMatrix[role]
	if !ok {
		return false
	}
	return perms[perm]
}

// Require returns an error wrapping model.ErrNotMember when username may not
// perform perm on g.
func Require(g *model.Group, username string, perm model.Permission) error {
	if HasPermission(g.RoleOf(username), perm) {
		return nil
	}
	return fmt.Errorf("rbac: %s in %s: %w", permName(perm), g.ID, model.ErrNotMember)
}

func permName(p model.Permission) string {
	switch p {
	case model.PermAddMember:
		return "add_member"
	case model.PermCreateAlarmCode:
		return "create_alarm_code"
	case model.PermTriggerAlarm:
		return "trigger_alarm"
	case model.PermViewPresence:
		return "call_presence"
	default:
		return "unknown"
	}
}
