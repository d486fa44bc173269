// Package protocol defines the JSON wire format spoken over the WebSocket:
// a closed set of client commands and server events, each carried as a JSON
// object with a "type" discriminator.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxMessageSize is the default upper bound on a single inbound frame.
const MaxMessageSize = 65536

// Command and event type discriminators.
const (
	TypeLogin           = "login"
	TypeAddFriend       = "add_friend"
	TypeCreateGroup     = "create_group"
	TypeAddMember       = "add_member"
	TypeCreateAlarmCode = "create_alarm_code"
	TypeTriggerAlarm    = "trigger_alarm"
	TypeCallPresence    = "call_presence"
	TypeWebRTC          = "webrtc"

	TypeState          = "state"
	TypeError          = "error"
	TypeFriendsUpdated = "friends_updated"
	TypeGroupCreated   = "group_created"
	TypeGroupUpdated   = "group_updated"
	TypeAlarm          = "alarm"
)

// ErrMalformed is returned for frames that are not a JSON object with a
// string "type" field, or whose fields have the wrong JSON types.
var ErrMalformed = errors.New("protocol: malformed message")

// UnknownTypeError reports a well-formed envelope with an unrecognized type.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return "unknown command type: " + e.Type
}

type envelope struct {
	Type *string `json:"type"`
}

// readType extracts the discriminator from a raw frame.
func readType(data []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == nil {
		return "", fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return *env.Type, nil
}

// marshalTagged encodes v, which must marshal to a JSON object, with a
// leading "type" member.
func marshalTagged(typ string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if rest := bytes.TrimPrefix(bytes.TrimSpace(body), []byte("{")); !bytes.HasPrefix(rest, []byte("}")) {
		buf.WriteByte(',')
		buf.Write(rest)
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// decodeInto fills v from a frame whose envelope already parsed. A field of
// the wrong JSON type is a *ValidationError, anything else ErrMalformed.
func decodeInto(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "message"
		}
		want := "valid value"
		if typeErr.Type != nil {
			want = typeErr.Type.Kind().String()
		}
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must be a %s", field, want), Err: err}
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
