package model

import (
	"strings"
	"testing"
	"time"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid simple", "alice", nil},
		{"valid minimum length", "bob", nil},
		{"valid with punctuation", "my.user-1", nil},
		{"valid unicode", "jürgen", nil},
		{"valid max length", strings.Repeat("a", MaxUsernameLength), nil},
		{"empty", "", ErrUsernameEmpty},
		{"one char", "a", ErrUsernameTooShort},
		{"two chars", "ab", ErrUsernameTooShort},
		{"too long", strings.Repeat("a", MaxUsernameLength+1), ErrUsernameTooLong},
		{"contains space", "has space", ErrUsernameInvalidChars},
		{"tab character", "user\tname", ErrUsernameInvalidChars},
		{"newline", "user\nname", ErrUsernameInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.input)
			if err != tt.wantErr {
				t.Errorf("ValidateUsername(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Alice", "alice"},
		{"  BOB ", "bob"},
		{"carol", "carol"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeUsername(tt.input); got != tt.want {
				t.Errorf("NormalizeUsername(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAlarmModeValid(t *testing.T) {
	tests := []struct {
		mode AlarmMode
		want bool
	}{
		{ModeNotification, true},
		{ModeMessage, true},
		{ModeCallLike, true},
		{"call_like", false},
		{"SIREN", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := tt.mode.Valid(); got != tt.want {
				t.Errorf("AlarmMode(%q).Valid() = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}

func TestAlarmCodeSpecWithDefaults(t *testing.T) {
	got := AlarmCodeSpec{Title: "  ", MessageText: "  hello "}.WithDefaults()
	want := AlarmCodeSpec{
		Title:       DefaultAlarmTitle,
		ColorHex:    DefaultColorHex,
		SoundKey:    DefaultSoundKey,
		Mode:        DefaultAlarmMode,
		MessageText: "hello",
	}
	if got != want {
		t.Errorf("WithDefaults() = %+v, want %+v", got, want)
	}

	kept := AlarmCodeSpec{Title: "Evac", ColorHex: "#000000", SoundKey: "horn", Mode: "SIREN"}.WithDefaults()
	if kept.Mode != "SIREN" || kept.SoundKey != "horn" || kept.Title != "Evac" {
		t.Errorf("WithDefaults() overwrote caller fields: %+v", kept)
	}
}

func TestDefaultAlarmCodes(t *testing.T) {
	codes := DefaultAlarmCodes()
	if len(codes) != 3 {
		t.Fatalf("DefaultAlarmCodes: expected 3 codes, got %d", len(codes))
	}
	modes := map[AlarmMode]bool{}
	for _, c := range codes {
		modes[c.Mode] = true
	}
	for _, m := range Modes() {
		if !modes[m] {
			t.Errorf("DefaultAlarmCodes: missing mode %s", m)
		}
	}
}

func TestNewAlarmEventOverride(t *testing.T) {
	code := &AlarmCode{ID: "code_1", Title: "SOS", Mode: ModeCallLike, MessageText: "I need help now."}
	now := time.UnixMilli(1700000000000)

	stored := NewAlarmEvent("grp_1", code, "alice", "   ", now)
	if stored.MessageText != code.MessageText {
		t.Errorf("blank override: got %q, want %q", stored.MessageText, code.MessageText)
	}

	overridden := NewAlarmEvent("grp_1", code, "alice", "at the station", now)
	if overridden.MessageText != "at the station" {
		t.Errorf("override: got %q", overridden.MessageText)
	}
	if overridden.CodeTitle != "SOS" || overridden.TriggeredBy != "alice" || !overridden.TriggeredAt.Equal(now) {
		t.Errorf("override: unexpected event %+v", overridden)
	}
	if !strings.HasPrefix(overridden.ID, PrefixAlarm) {
		t.Errorf("override: id %q lacks prefix %q", overridden.ID, PrefixAlarm)
	}
}

func TestGroupRoleOf(t *testing.T) {
	g := &Group{Owner: "alice", Members: []string{"alice", "bob"}}
	tests := []struct {
		user string
		want GroupRole
	}{
		{"alice", RoleOwner},
		{"bob", RoleMember},
		{"carol", RoleOutsider},
		{"", RoleOutsider},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := g.RoleOf(tt.user); got != tt.want {
				t.Errorf("RoleOf(%q) = %v, want %v", tt.user, got, tt.want)
			}
		})
	}
}

func TestGroupCloneIsDeep(t *testing.T) {
	g := &Group{ID: "grp_1", Members: []string{"alice"}, AlarmCodes: []AlarmCode{{ID: "code_1"}}}
	c := g.Clone()
	c.Members[0] = "mallory"
	c.AlarmCodes[0].ID = "code_x"
	if g.Members[0] != "alice" || g.AlarmCodes[0].ID != "code_1" {
		t.Fatalf("Clone shares backing arrays with the original")
	}
}
