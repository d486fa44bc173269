// Package model defines the core domain types for SOS Meet: users and their
// friendships, groups with their alarm-code catalogs, and the transient alarm
// events raised from those catalogs.
package model

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ID prefixes for the opaque tokens handed out to clients.
const (
	PrefixGroup   = "grp_"
	PrefixCode    = "code_"
	PrefixAlarm   = "alarm_"
	PrefixSession = "sock_"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrNotMember     = errors.New("not a member of this group")
	ErrCodeNotFound  = errors.New("alarm code not found")
)

// NewID returns a fresh opaque identifier carrying the given prefix.
func NewID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
