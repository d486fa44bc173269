package model

// GroupRole is a user's standing within a single group.
type GroupRole int

const (
	RoleOutsider GroupRole = iota // not in the member list
	RoleMember                    // regular member
	RoleOwner                     // creator of the group, always a member
)

func (r GroupRole) String() string {
	switch r {
	case RoleOutsider:
		return "outsider"
	case RoleMember:
		return "member"
	case RoleOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// Valid returns true for Outsider, Member or Owner.
func (r GroupRole) Valid() bool {
	return r >= RoleOutsider && r <= RoleOwner
}

// Permission is a group-scoped action checked against a GroupRole.
type Permission int

const (
	PermAddMember Permission = iota
	PermCreateAlarmCode
	PermTriggerAlarm
	PermViewPresence
)
