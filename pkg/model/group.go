package model

import (
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxGroupNameLength = 64

var ErrGroupNameEmpty = errors.New("group name must not be empty")
var ErrGroupNameTooLong = errors.New("group name too long")

// Group is a named set of users sharing an alarm-code catalog. Members and
// AlarmCodes keep insertion order; Owner is always in Members.
type Group struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Owner      string      `json:"owner"`
	Members    []string    `json:"members"`
	AlarmCodes []AlarmCode `json:"alarm_codes"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ValidateGroupName checks a trimmed group name.
func ValidateGroupName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrGroupNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxGroupNameLength {
		return ErrGroupNameTooLong
	}
	return nil
}

// IsMember reports whether username is in the member list.
func (g *Group) IsMember(username string) bool {
	return slices.Contains(g.Members, username)
}

// RoleOf returns username's standing in the group.
func (g *Group) RoleOf(username string) GroupRole {
	switch {
	case username == "":
		return RoleOutsider
	case username == g.Owner:
		return RoleOwner
	case g.IsMember(username):
		return RoleMember
	default:
		return RoleOutsider
	}
}

// Code resolves an alarm code by ID within this group.
func (g *Group) Code(id string) (*AlarmCode, bool) {
	for i := range g.AlarmCodes {
		if g.AlarmCodes[i].ID == id {
			c := g.AlarmCodes[i]
			return &c, true
		}
	}
	return nil, false
}

// Clone returns a deep copy safe to hand out of a store.
func (g *Group) Clone() *Group {
	c := *g
	c.Members = append(make([]string, 0, len(g.Members)), g.Members...)
	c.AlarmCodes = append(make([]AlarmCode, 0, len(g.AlarmCodes)), g.AlarmCodes...)
	return &c
}
