package protocol

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/NicolasHaas/sosmeet/pkg/model"
)

// Command is a decoded client request. The set of implementations is closed.
type Command interface {
	CommandType() string
}

// Login binds the connection to a username.
type Login struct {
	Username string `json:"username"`
}

// AddFriend links the caller and Friend.
type AddFriend struct {
	Friend string `json:"friend" validate:"required"`
}

// CreateGroup creates a group owned by the caller.
type CreateGroup struct {
	Name string `json:"name" validate:"required,max=64"`
}

// AddMember adds Member to a group the caller belongs to.
type AddMember struct {
	GroupID string `json:"groupId" validate:"required"`
	Member  string `json:"member" validate:"required"`
}

// CreateAlarmCode appends an alarm code to a group's catalog. Empty fields
// take server defaults.
type CreateAlarmCode struct {
	GroupID     string `json:"groupId" validate:"required"`
	Title       string `json:"title,omitempty"`
	Mode        string `json:"mode,omitempty"`
	ColorHex    string `json:"colorHex,omitempty"`
	SoundKey    string `json:"soundKey,omitempty"`
	MessageText string `json:"messageText,omitempty"`
}

// TriggerAlarm raises an alarm from one of a group's codes.
type TriggerAlarm struct {
	GroupID         string `json:"groupId" validate:"required"`
	CodeID          string `json:"codeId" validate:"required"`
	MessageOverride string `json:"messageOverride,omitempty"`
}

// CallPresence asks which members of a group are online.
type CallPresence struct {
	GroupID string `json:"groupId" validate:"required"`
}

// WebRTC carries an opaque signaling payload to another user.
type WebRTC struct {
	GroupID string          `json:"groupId"`
	To      string          `json:"to" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

func (Login) CommandType() string           { return TypeLogin }
func (AddFriend) CommandType() string       { return TypeAddFriend }
func (CreateGroup) CommandType() string     { return TypeCreateGroup }
func (AddMember) CommandType() string       { return TypeAddMember }
func (CreateAlarmCode) CommandType() string { return TypeCreateAlarmCode }
func (TriggerAlarm) CommandType() string    { return TypeTriggerAlarm }
func (CallPresence) CommandType() string    { return TypeCallPresence }
func (WebRTC) CommandType() string          { return TypeWebRTC }

func (c Login) MarshalJSON() ([]byte, error) {
	type alias Login
	return marshalTagged(TypeLogin, alias(c))
}

func (c AddFriend) MarshalJSON() ([]byte, error) {
	type alias AddFriend
	return marshalTagged(TypeAddFriend, alias(c))
}

func (c CreateGroup) MarshalJSON() ([]byte, error) {
	type alias CreateGroup
	return marshalTagged(TypeCreateGroup, alias(c))
}

func (c AddMember) MarshalJSON() ([]byte, error) {
	type alias AddMember
	return marshalTagged(TypeAddMember, alias(c))
}

func (c CreateAlarmCode) MarshalJSON() ([]byte, error) {
	type alias CreateAlarmCode
	return marshalTagged(TypeCreateAlarmCode, alias(c))
}

func (c TriggerAlarm) MarshalJSON() ([]byte, error) {
	type alias TriggerAlarm
	return marshalTagged(TypeTriggerAlarm, alias(c))
}

func (c CallPresence) MarshalJSON() ([]byte, error) {
	type alias CallPresence
	return marshalTagged(TypeCallPresence, alias(c))
}

func (c WebRTC) MarshalJSON() ([]byte, error) {
	type alias WebRTC
	return marshalTagged(TypeWebRTC, alias(c))
}

// Spec returns the caller-supplied alarm fields.
func (c CreateAlarmCode) Spec() model.AlarmCodeSpec {
	return model.AlarmCodeSpec{
		Title:       c.Title,
		ColorHex:    c.ColorHex,
		SoundKey:    c.SoundKey,
		Mode:        model.AlarmMode(c.Mode),
		MessageText: c.MessageText,
	}
}

// DecodeCommand parses one inbound frame. Usernames are normalized and
// identifiers trimmed; field validation is left to Validate.
//
// It returns ErrMalformed for undecodable frames, *UnknownTypeError for
// unrecognized discriminators and a *ValidationError, with Command set, for
// a known command carrying a field of the wrong JSON type.
func DecodeCommand(data []byte) (Command, error) {
	typ, err := readType(data)
	if err != nil {
		return nil, err
	}
	cmd, err := decodeCommand(typ, data)
	var verr *ValidationError
	if errors.As(err, &verr) {
		verr.Command = typ
	}
	return cmd, err
}

func decodeCommand(typ string, data []byte) (Command, error) {
	switch typ {
	case TypeLogin:
		var c Login
		if err := decodeInto(data, &c); err != nil {
			return nil, err
		}
		c.Username = model.NormalizeUsername(c.Username)
		return c, nil
	case TypeAddFriend:
		var c AddFriend
		if err := decodeInto(data, &c); err != nil {
			return nil, err
		}
		c.Friend = model.NormalizeUsername(c.Friend)
		return c, nil
	case TypeCreateGroup:
		var c CreateGroup
		if err := decodeInto(data, &c); err != nil {
			return nil, err
		}
		c.Name = strings.TrimSpace(c.Name)
		return c, nil
	case TypeAddMember:
		var c AddMember
		if err := decodeInto(data, &c); err != nil {
			return nil, err
		}
		c.GroupID = strings.TrimSpace(c.GroupID)
		c.Member = model.NormalizeUsername(c.Member)
		return c, nil
	case TypeCreateAlarmCode:
		var c CreateAlarmCode
		if err := decodeInto(data, &c); err != nil {
			return nil, err
		}
		c.GroupID = strings.TrimSpace(c.GroupID)
		return c, nil
	case TypeTriggerAlarm:
		var c TriggerAlarm
		if err := decodeInto(data, &c); err != nil {
			return nil, err
		}
		c.GroupID = strings.TrimSpace(c.GroupID)
		c.CodeID = strings.TrimSpace(c.CodeID)
		return c, nil
	case TypeCallPresence:
		var c CallPresence
		if err := decodeInto(data, &c); err != nil {
			return nil, err
		}
		c.GroupID = strings.TrimSpace(c.GroupID)
		return c, nil
	case TypeWebRTC:
		var c WebRTC
		if err := decodeInto(data, &c); err != nil {
			return nil, err
		}
		c.GroupID = strings.TrimSpace(c.GroupID)
		c.To = model.NormalizeUsername(c.To)
		return c, nil
	default:
		return nil, &UnknownTypeError{Type: typ}
	}
}
