package model

import (
	"strings"
	"time"
)

// AlarmMode tells clients how to surface an alarm. Values outside the three
// known modes can be stored when the server accepts free-text modes.
type AlarmMode string

const (
	ModeNotification AlarmMode = "NOTIFICATION"
	ModeMessage      AlarmMode = "MESSAGE"
	ModeCallLike     AlarmMode = "CALL_LIKE"
)

// Defaults applied to empty fields of a new alarm code.
const (
	DefaultAlarmTitle = "Alarm"
	DefaultColorHex   = "#ff2d2d"
	DefaultSoundKey   = "sos"
	DefaultAlarmMode  = ModeNotification
)

// Modes lists the known alarm modes.
func Modes() []AlarmMode {
	return []AlarmMode{ModeNotification, ModeMessage, ModeCallLike}
}

// Valid reports whether m is one of the known modes.
func (m AlarmMode) Valid() bool {
	switch m {
	case ModeNotification, ModeMessage, ModeCallLike:
		return true
	default:
		return false
	}
}

// AlarmCodeSpec holds the caller-supplied fields of an alarm code.
type AlarmCodeSpec struct {
	Title       string
	ColorHex    string
	SoundKey    string
	Mode        AlarmMode
	MessageText string
}

// WithDefaults trims every field and fills empty ones with the defaults.
// MessageText may stay empty.
func (s AlarmCodeSpec) WithDefaults() AlarmCodeSpec {
	out := AlarmCodeSpec{
		Title:       strings.TrimSpace(s.Title),
		ColorHex:    strings.TrimSpace(s.ColorHex),
		SoundKey:    strings.TrimSpace(s.SoundKey),
		Mode:        AlarmMode(strings.TrimSpace(string(s.Mode))),
		MessageText: strings.TrimSpace(s.MessageText),
	}
	if out.Title == "" {
		out.Title = DefaultAlarmTitle
	}
	if out.ColorHex == "" {
		out.ColorHex = DefaultColorHex
	}
	if out.SoundKey == "" {
		out.SoundKey = DefaultSoundKey
	}
	if out.Mode == "" {
		out.Mode = DefaultAlarmMode
	}
	return out
}

// DefaultAlarmCodes is the catalog every new group is seeded with unless the
// operator configures another one.
func DefaultAlarmCodes() []AlarmCodeSpec {
	return []AlarmCodeSpec{
		{Title: "SOS", ColorHex: "#ff2d2d", SoundKey: "sos", Mode: ModeCallLike, MessageText: "I need help now."},
		{Title: "Pick Me Up", ColorHex: "#ffb020", SoundKey: "ping", Mode: ModeMessage, MessageText: "Can you pick me up?"},
		{Title: "Check In", ColorHex: "#2dd4ff", SoundKey: "soft", Mode: ModeNotification, MessageText: "Please check in with me."},
	}
}

// AlarmCode is an immutable alert template owned by one group.
type AlarmCode struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ColorHex    string    `json:"color_hex"`
	SoundKey    string    `json:"sound_key"`
	Mode        AlarmMode `json:"mode"`
	MessageText string    `json:"message_text"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAlarmCode materializes a spec into a code with a fresh ID.
func NewAlarmCode(spec AlarmCodeSpec, createdBy string, now time.Time) AlarmCode {
	return AlarmCode{
		ID:          NewID(PrefixCode),
		Title:       spec.Title,
		ColorHex:    spec.ColorHex,
		SoundKey:    spec.SoundKey,
		Mode:        spec.Mode,
		MessageText: spec.MessageText,
		CreatedBy:   createdBy,
		CreatedAt:   now,
	}
}

// AlarmEvent is a triggered alarm. It only lives for one broadcast.
type AlarmEvent struct {
	ID          string
	GroupID     string
	CodeID      string
	CodeTitle   string
	ColorHex    string
	SoundKey    string
	Mode        AlarmMode
	MessageText string
	TriggeredBy string
	TriggeredAt time.Time
}

// NewAlarmEvent builds the event for code. A non-blank override replaces the
// code's stored message text.
func NewAlarmEvent(groupID string, code *AlarmCode, triggeredBy, override string, now time.Time) *AlarmEvent {
	text := strings.TrimSpace(override)
	if text == "" {
		text = code.MessageText
	}
	return &AlarmEvent{
		ID:          NewID(PrefixAlarm),
		GroupID:     groupID,
		CodeID:      code.ID,
		CodeTitle:   code.Title,
		ColorHex:    code.ColorHex,
		SoundKey:    code.SoundKey,
		Mode:        code.Mode,
		MessageText: text,
		TriggeredBy: triggeredBy,
		TriggeredAt: now,
	}
}
