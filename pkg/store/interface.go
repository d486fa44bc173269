package store

import (
	"github.com/NicolasHaas/sosmeet/pkg/model"
)

// DataStore is the social-graph and group registry. Implementations keep state
// for the lifetime of the process only.
//
// Lookups return (nil, nil) when the entity does not exist. Group mutations
// return model.ErrGroupNotFound or an error wrapping model.ErrNotMember and
// leave the group untouched in that case.
type DataStore interface {
	// Close releases the backend.
	Close() error

	// ---- Users ----

	// EnsureUser creates the user if absent and returns it.
	EnsureUser(username string) (*model.User, error)

	// GetUser retrieves a user by username.
	GetUser(username string) (*model.User, error)

	// AddFriend links a and b symmetrically, creating either user if needed,
	// and returns both updated users.
	AddFriend(a, b string) (*model.User, *model.User, error)

	// ---- Groups ----

	// CreateGroup creates a group owned by owner, seeded with one alarm code
	// per entry of defaults.
	CreateGroup(owner, name string, defaults []model.AlarmCodeSpec) (*model.Group, error)

	// GetGroup retrieves a group by ID.
	GetGroup(id string) (*model.Group, error)

	// GroupsFor returns the groups username belongs to, in creation order.
	GroupsFor(username string) ([]model.Group, error)

	// AddMember inserts member on behalf of requester, who must be a member.
	AddMember(groupID, requester, member string) (*model.Group, error)

	// CreateAlarmCode appends a code on behalf of requester, who must be a member.
	CreateAlarmCode(groupID, requester string, spec model.AlarmCodeSpec) (*model.Group, *model.AlarmCode, error)
}

// Compile-time checks.
var (
	_ DataStore = (*MemoryStore)(nil)
	_ DataStore = (*SQLStore)(nil)
)
