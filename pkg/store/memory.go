package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/NicolasHaas/sosmeet/pkg/model"
	"github.com/NicolasHaas/sosmeet/pkg/rbac"
)

// MemoryStore is the default DataStore. It mirrors SQLStore behavior for
// validation, ordering and error handling.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	users      map[string]*model.User
	groups     map[string]*model.Group
	groupOrder []string
}

// NewMemory creates a MemoryStore using time.Now().UTC().
func NewMemory() *MemoryStore {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() })
}

// NewMemoryWithClock creates a MemoryStore with a custom clock.
func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		now:    now,
		users:  make(map[string]*model.User),
		groups: make(map[string]*model.Group),
	}
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// ensureUserLocked must be called with s.mu held for writing.
func (s *MemoryStore) ensureUserLocked(username string) (*model.User, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, err
	}
	u, ok := s.users[username]
	if !ok {
		u = &model.User{Username: username, Friends: []string{}, CreatedAt: s.now().UTC()}
		s.users[username] = u
	}
	return u, nil
}

// EnsureUser creates the user if absent and returns it.
func (s *MemoryStore) EnsureUser(username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.ensureUserLocked(username)
	if err != nil {
		return nil, fmt.Errorf("store: ensure user: %w", err)
	}
	return u.Clone(), nil
}

// GetUser retrieves a user by username.
func (s *MemoryStore) GetUser(username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	return u.Clone(), nil
}

// AddFriend links a and b in both directions under one lock.
func (s *MemoryStore) AddFriend(a, b string) (*model.User, *model.User, error) {
	if a == b {
		return nil, nil, fmt.Errorf("store: add friend: %w", model.ErrSelfFriend)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ua, err := s.ensureUserLocked(a)
	if err != nil {
		return nil, nil, fmt.Errorf("store: add friend: %w", err)
	}
	ub, err := s.ensureUserLocked(b)
	if err != nil {
		return nil, nil, fmt.Errorf("store: add friend: %w", err)
	}
	if !ua.HasFriend(b) {
		ua.Friends = append(ua.Friends, b)
	}
	if !ub.HasFriend(a) {
		ub.Friends = append(ub.Friends, a)
	}
	return ua.Clone(), ub.Clone(), nil
}

// CreateGroup creates a group owned by owner and seeds its alarm codes.
func (s *MemoryStore) CreateGroup(owner, name string, defaults []model.AlarmCodeSpec) (*model.Group, error) {
	if err := model.ValidateGroupName(name); err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ensureUserLocked(owner); err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}

	now := s.now().UTC()
	g := &model.Group{
		ID:         model.NewID(model.PrefixGroup),
		Name:       name,
		Owner:      owner,
		Members:    []string{owner},
		AlarmCodes: make([]model.AlarmCode, 0, len(defaults)),
		CreatedAt:  now,
	}
	for _, spec := range defaults {
		g.AlarmCodes = append(g.AlarmCodes, model.NewAlarmCode(spec, owner, now))
	}
	s.groups[g.ID] = g
	s.groupOrder = append(s.groupOrder, g.ID)
	return g.Clone(), nil
}

// GetGroup retrieves a group by ID.
func (s *MemoryStore) GetGroup(id string) (*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	return g.Clone(), nil
}

// GroupsFor returns the groups username belongs to, in creation order.
func (s *MemoryStore) GroupsFor(username string) ([]model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]model.Group, 0)
	for _, id := range s.groupOrder {
		g := s.groups[id]
		if g.IsMember(username) {
			groups = append(groups, *g.Clone())
		}
	}
	return groups, nil
}

// AddMember inserts member on behalf of requester.
func (s *MemoryStore) AddMember(groupID, requester, member string) (*model.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("store: add member: %w", model.ErrGroupNotFound)
	}
	if err := rbac.Require(g, requester, model.PermAddMember); err != nil {
		return nil, fmt.Errorf("store: add member: %w", err)
	}
	if _, err := s.ensureUserLocked(member); err != nil {
		return nil, fmt.Errorf("store: add member: %w", err)
	}
	if !g.IsMember(member) {
		g.Members = append(g.Members, member)
	}
	return g.Clone(), nil
}

// CreateAlarmCode appends a code on behalf of requester.
func (s *MemoryStore) CreateAlarmCode(groupID, requester string, spec model.AlarmCodeSpec) (*model.Group, *model.AlarmCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, nil, fmt.Errorf("store: create alarm code: %w", model.ErrGroupNotFound)
	}
	if err := rbac.Require(g, requester, model.PermCreateAlarmCode); err != nil {
		return nil, nil, fmt.Errorf("store: create alarm code: %w", err)
	}
	code := model.NewAlarmCode(spec, requester, s.now().UTC())
	g.AlarmCodes = append(g.AlarmCodes, code)
	return g.Clone(), &code, nil
}
