package store_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/NicolasHaas/sosmeet/pkg/model"
	"github.com/NicolasHaas/sosmeet/pkg/store"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// withStores runs fn against every DataStore backend.
func withStores(t *testing.T, fn func(t *testing.T, st store.DataStore)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, store.NewMemoryWithClock(fixedClock))
	})
	t.Run("sqlite", func(t *testing.T) {
		st, err := store.NewSQLWithClock(fixedClock)
		if err != nil {
			t.Fatalf("failed to open sqlite store: %v", err)
		}
		t.Cleanup(func() {
			if err := st.Close(); err != nil {
				t.Errorf("close: %v", err)
			}
		})
		fn(t, st)
	})
}

func TestEnsureUser(t *testing.T) {
	type tcase struct {
		username  string
		expectErr error
	}

	tcases := map[string]tcase{
		"valid":       {username: "alice"},
		"empty":       {username: "", expectErr: model.ErrUsernameEmpty},
		"too_short":   {username: "al", expectErr: model.ErrUsernameTooShort},
		"with_spaces": {username: "' OR '1'='1", expectErr: model.ErrUsernameInvalidChars},
	}

	withStores(t, func(t *testing.T, st store.DataStore) {
		for name, tc := range tcases {
			t.Run(name, func(t *testing.T) {
				got, err := st.EnsureUser(tc.username)
				if tc.expectErr != nil {
					if !errors.Is(err, tc.expectErr) {
						t.Fatalf("expected %v, got %v", tc.expectErr, err)
					}
					return
				}
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				want := &model.User{Username: tc.username, Friends: []string{}, CreatedAt: fixedNow}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("EnsureUser mismatch (-want +got):\n%s", diff)
				}
			})
		}
	})
}

func TestEnsureUserIdempotent(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		if _, _, err := st.AddFriend("alice", "bobby"); err != nil {
			t.Fatalf("AddFriend: %v", err)
		}
		u, err := st.EnsureUser("alice")
		if err != nil {
			t.Fatalf("EnsureUser: %v", err)
		}
		if diff := cmp.Diff([]string{"bobby"}, u.Friends); diff != "" {
			t.Errorf("friends lost on second ensure (-want +got):\n%s", diff)
		}
	})
}

func TestGetUserMissing(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		u, err := st.GetUser("nobody")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u != nil {
			t.Fatalf("expected nil, got %+v", u)
		}
	})
}

func TestAddFriendSymmetric(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		a, b, err := st.AddFriend("alice", "bobby")
		if err != nil {
			t.Fatalf("AddFriend: %v", err)
		}
		if !a.HasFriend("bobby") || !b.HasFriend("alice") {
			t.Fatalf("friendship not symmetric: %v / %v", a.Friends, b.Friends)
		}

		// Repeating in either direction must not duplicate entries.
		if _, _, err := st.AddFriend("bobby", "alice"); err != nil {
			t.Fatalf("AddFriend repeat: %v", err)
		}
		if _, _, err := st.AddFriend("alice", "carol"); err != nil {
			t.Fatalf("AddFriend carol: %v", err)
		}

		got, err := st.GetUser("alice")
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
		if diff := cmp.Diff([]string{"bobby", "carol"}, got.Friends); diff != "" {
			t.Errorf("friends mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestAddFriendSelf(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		_, _, err := st.AddFriend("alice", "alice")
		if !errors.Is(err, model.ErrSelfFriend) {
			t.Fatalf("expected ErrSelfFriend, got %v", err)
		}
		u, _ := st.GetUser("alice")
		if u != nil && len(u.Friends) != 0 {
			t.Fatalf("self friendship recorded: %v", u.Friends)
		}
	})
}

func TestCreateGroupSeedsDefaults(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		g, err := st.CreateGroup("alice", "Family", model.DefaultAlarmCodes())
		if err != nil {
			t.Fatalf("CreateGroup: %v", err)
		}
		if g.ID == "" || g.Owner != "alice" {
			t.Fatalf("unexpected group: %+v", g)
		}
		if diff := cmp.Diff([]string{"alice"}, g.Members); diff != "" {
			t.Errorf("members mismatch (-want +got):\n%s", diff)
		}

		titles := make([]string, 0, len(g.AlarmCodes))
		for _, c := range g.AlarmCodes {
			titles = append(titles, c.Title)
			if c.CreatedBy != "alice" {
				t.Errorf("code %q created_by = %q", c.Title, c.CreatedBy)
			}
		}
		if diff := cmp.Diff([]string{"SOS", "Pick Me Up", "Check In"}, titles); diff != "" {
			t.Errorf("default codes mismatch (-want +got):\n%s", diff)
		}

		fetched, err := st.GetGroup(g.ID)
		if err != nil {
			t.Fatalf("GetGroup: %v", err)
		}
		if diff := cmp.Diff(g, fetched); diff != "" {
			t.Errorf("GetGroup mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestCreateGroupInvalidName(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		if _, err := st.CreateGroup("alice", "", nil); !errors.Is(err, model.ErrGroupNameEmpty) {
			t.Fatalf("expected ErrGroupNameEmpty, got %v", err)
		}
		groups, err := st.GroupsFor("alice")
		if err != nil {
			t.Fatalf("GroupsFor: %v", err)
		}
		if len(groups) != 0 {
			t.Fatalf("expected no groups, got %d", len(groups))
		}
	})
}

func TestAddMember(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		g, err := st.CreateGroup("alice", "Family", nil)
		if err != nil {
			t.Fatalf("CreateGroup: %v", err)
		}

		if _, err := st.AddMember(g.ID, "mallory", "bobby"); !errors.Is(err, model.ErrNotMember) {
			t.Fatalf("outsider add: expected ErrNotMember, got %v", err)
		}
		if _, err := st.AddMember("grp_missing", "alice", "bobby"); !errors.Is(err, model.ErrGroupNotFound) {
			t.Fatalf("missing group: expected ErrGroupNotFound, got %v", err)
		}

		updated, err := st.AddMember(g.ID, "alice", "bobby")
		if err != nil {
			t.Fatalf("AddMember: %v", err)
		}
		// Members may add further members.
		if updated, err = st.AddMember(g.ID, "bobby", "carol"); err != nil {
			t.Fatalf("AddMember by member: %v", err)
		}
		if updated, err = st.AddMember(g.ID, "alice", "bobby"); err != nil {
			t.Fatalf("AddMember repeat: %v", err)
		}
		if diff := cmp.Diff([]string{"alice", "bobby", "carol"}, updated.Members); diff != "" {
			t.Errorf("members mismatch (-want +got):\n%s", diff)
		}

		bob, err := st.GetUser("bobby")
		if err != nil || bob == nil {
			t.Fatalf("added member not registered as user: %v", err)
		}
	})
}

func TestCreateAlarmCode(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		g, err := st.CreateGroup("alice", "Family", nil)
		if err != nil {
			t.Fatalf("CreateGroup: %v", err)
		}

		spec := model.AlarmCodeSpec{Title: "Evac", ColorHex: "#00ff00", SoundKey: "ping", Mode: model.ModeMessage, MessageText: "Leave now"}
		if _, _, err := st.CreateAlarmCode(g.ID, "mallory", spec); !errors.Is(err, model.ErrNotMember) {
			t.Fatalf("outsider: expected ErrNotMember, got %v", err)
		}

		updated, code, err := st.CreateAlarmCode(g.ID, "alice", spec)
		if err != nil {
			t.Fatalf("CreateAlarmCode: %v", err)
		}
		want := model.AlarmCode{
			Title: "Evac", ColorHex: "#00ff00", SoundKey: "ping", Mode: model.ModeMessage,
			MessageText: "Leave now", CreatedBy: "alice", CreatedAt: fixedNow,
		}
		if diff := cmp.Diff(want, *code, cmpopts.IgnoreFields(model.AlarmCode{}, "ID")); diff != "" {
			t.Errorf("code mismatch (-want +got):\n%s", diff)
		}
		if len(updated.AlarmCodes) != 1 || updated.AlarmCodes[0].ID != code.ID {
			t.Fatalf("code not appended: %+v", updated.AlarmCodes)
		}
		if _, ok := updated.Code(code.ID); !ok {
			t.Fatalf("Code(%s) not resolvable", code.ID)
		}
	})
}

func TestGroupsForOrdering(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		var ids []string
		for _, name := range []string{"One", "Two", "Three"} {
			g, err := st.CreateGroup("alice", name, nil)
			if err != nil {
				t.Fatalf("CreateGroup %s: %v", name, err)
			}
			ids = append(ids, g.ID)
		}
		if _, err := st.AddMember(ids[2], "alice", "bobby"); err != nil {
			t.Fatalf("AddMember: %v", err)
		}
		if _, err := st.AddMember(ids[0], "alice", "bobby"); err != nil {
			t.Fatalf("AddMember: %v", err)
		}

		groups, err := st.GroupsFor("bobby")
		if err != nil {
			t.Fatalf("GroupsFor: %v", err)
		}
		got := make([]string, 0, len(groups))
		for _, g := range groups {
			got = append(got, g.ID)
		}
		if diff := cmp.Diff([]string{ids[0], ids[2]}, got); diff != "" {
			t.Errorf("GroupsFor order mismatch (-want +got):\n%s", diff)
		}

		none, err := st.GroupsFor("nobody")
		if err != nil {
			t.Fatalf("GroupsFor nobody: %v", err)
		}
		if none == nil || len(none) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", none)
		}
	})
}

func TestReturnedValuesAreCopies(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		g, err := st.CreateGroup("alice", "Family", model.DefaultAlarmCodes())
		if err != nil {
			t.Fatalf("CreateGroup: %v", err)
		}
		g.Members[0] = "tampered"
		g.AlarmCodes[0].Title = "tampered"

		fetched, err := st.GetGroup(g.ID)
		if err != nil {
			t.Fatalf("GetGroup: %v", err)
		}
		if fetched.Members[0] != "alice" || fetched.AlarmCodes[0].Title != "SOS" {
			t.Fatalf("store state leaked through returned value: %+v", fetched)
		}
	})
}

func TestConcurrentAddMember(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		g, err := st.CreateGroup("alice", "Crowd", nil)
		if err != nil {
			t.Fatalf("CreateGroup: %v", err)
		}

		names := []string{"user01", "user02", "user03", "user04", "user05", "user06", "user07", "user08"}
		var wg sync.WaitGroup
		for _, name := range names {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				if _, err := st.AddMember(g.ID, "alice", name); err != nil {
					t.Errorf("AddMember %s: %v", name, err)
				}
			}(name)
		}
		wg.Wait()

		fetched, err := st.GetGroup(g.ID)
		if err != nil {
			t.Fatalf("GetGroup: %v", err)
		}
		if len(fetched.Members) != len(names)+1 {
			t.Fatalf("expected %d members, got %d", len(names)+1, len(fetched.Members))
		}
	})
}
