package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/NicolasHaas/sosmeet/pkg/model"
)

// Event is a server-to-client message. The set of implementations is closed.
type Event interface {
	EventType() string
}

// AlarmCodeView is the wire shape of a model.AlarmCode.
type AlarmCodeView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ColorHex    string `json:"colorHex"`
	SoundKey    string `json:"soundKey"`
	Mode        string `json:"mode"`
	MessageText string `json:"messageText"`
	CreatedBy   string `json:"createdBy"`
	CreatedAt   int64  `json:"createdAt"`
}

// GroupView is the wire shape of a model.Group. Slices are never null.
type GroupView struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Owner      string          `json:"owner"`
	Members    []string        `json:"members"`
	AlarmCodes []AlarmCodeView `json:"alarmCodes"`
}

// AlarmView is the wire shape of a model.AlarmEvent.
type AlarmView struct {
	ID          string `json:"id"`
	GroupID     string `json:"groupId"`
	CodeID      string `json:"codeId"`
	CodeTitle   string `json:"codeTitle"`
	ColorHex    string `json:"colorHex"`
	SoundKey    string `json:"soundKey"`
	Mode        string `json:"mode"`
	MessageText string `json:"messageText"`
	TriggeredBy string `json:"triggeredBy"`
	TriggeredAt int64  `json:"triggeredAt"`
}

// NewGroupView materializes g for the wire.
func NewGroupView(g *model.Group) GroupView {
	v := GroupView{
		ID:         g.ID,
		Name:       g.Name,
		Owner:      g.Owner,
		Members:    append(make([]string, 0, len(g.Members)), g.Members...),
		AlarmCodes: make([]AlarmCodeView, 0, len(g.AlarmCodes)),
	}
	for _, c := range g.AlarmCodes {
		v.AlarmCodes = append(v.AlarmCodes, AlarmCodeView{
			ID:          c.ID,
			Title:       c.Title,
			ColorHex:    c.ColorHex,
			SoundKey:    c.SoundKey,
			Mode:        string(c.Mode),
			MessageText: c.MessageText,
			CreatedBy:   c.CreatedBy,
			CreatedAt:   c.CreatedAt.UnixMilli(),
		})
	}
	return v
}

// NewGroupViews converts a list of groups, returning an empty slice for none.
func NewGroupViews(groups []model.Group) []GroupView {
	out := make([]GroupView, 0, len(groups))
	for i := range groups {
		out = append(out, NewGroupView(&groups[i]))
	}
	return out
}

// NewAlarmView converts a triggered alarm for the wire.
func NewAlarmView(a *model.AlarmEvent) AlarmView {
	return AlarmView{
		ID:          a.ID,
		GroupID:     a.GroupID,
		CodeID:      a.CodeID,
		CodeTitle:   a.CodeTitle,
		ColorHex:    a.ColorHex,
		SoundKey:    a.SoundKey,
		Mode:        string(a.Mode),
		MessageText: a.MessageText,
		TriggeredBy: a.TriggeredBy,
		TriggeredAt: a.TriggeredAt.UnixMilli(),
	}
}

// StateEvent is the full snapshot sent once after a successful login.
type StateEvent struct {
	Me      string      `json:"me"`
	Friends []string    `json:"friends"`
	Groups  []GroupView `json:"groups"`
}

// ErrorEvent reports a rejected command. The connection stays open.
type ErrorEvent struct {
	Message string `json:"message"`
}

type FriendsUpdatedEvent struct {
	UserA string `json:"userA"`
	UserB string `json:"userB"`
}

type GroupCreatedEvent struct {
	Group GroupView `json:"group"`
}

type GroupUpdatedEvent struct {
	Group GroupView `json:"group"`
}

type AlarmEvent struct {
	Alarm AlarmView `json:"alarm"`
}

// CallPresenceEvent answers a call_presence command for the requester only.
type CallPresenceEvent struct {
	GroupID       string   `json:"groupId"`
	OnlineMembers []string `json:"onlineMembers"`
}

// WebRTCEvent is a relayed signaling payload.
type WebRTCEvent struct {
	From    string          `json:"from"`
	GroupID string          `json:"groupId"`
	Payload json.RawMessage `json:"payload"`
}

func (StateEvent) EventType() string          { return TypeState }
func (ErrorEvent) EventType() string          { return TypeError }
func (FriendsUpdatedEvent) EventType() string { return TypeFriendsUpdated }
func (GroupCreatedEvent) EventType() string   { return TypeGroupCreated }
func (GroupUpdatedEvent) EventType() string   { return TypeGroupUpdated }
func (AlarmEvent) EventType() string          { return TypeAlarm }
func (CallPresenceEvent) EventType() string   { return TypeCallPresence }
func (WebRTCEvent) EventType() string         { return TypeWebRTC }

func (e StateEvent) MarshalJSON() ([]byte, error) {
	type alias StateEvent
	return marshalTagged(TypeState, alias(e))
}

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	type alias ErrorEvent
	return marshalTagged(TypeError, alias(e))
}

func (e FriendsUpdatedEvent) MarshalJSON() ([]byte, error) {
	type alias FriendsUpdatedEvent
	return marshalTagged(TypeFriendsUpdated, alias(e))
}

func (e GroupCreatedEvent) MarshalJSON() ([]byte, error) {
	type alias GroupCreatedEvent
	return marshalTagged(TypeGroupCreated, alias(e))
}

func (e GroupUpdatedEvent) MarshalJSON() ([]byte, error) {
	type alias GroupUpdatedEvent
	return marshalTagged(TypeGroupUpdated, alias(e))
}

func (e AlarmEvent) MarshalJSON() ([]byte, error) {
	type alias AlarmEvent
	return marshalTagged(TypeAlarm, alias(e))
}

func (e CallPresenceEvent) MarshalJSON() ([]byte, error) {
	type alias CallPresenceEvent
	return marshalTagged(TypeCallPresence, alias(e))
}

func (e WebRTCEvent) MarshalJSON() ([]byte, error) {
	type alias WebRTCEvent
	return marshalTagged(TypeWebRTC, alias(e))
}

// EncodeEvent serializes an event to a single JSON frame.
func EncodeEvent(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", e.EventType(), err)
	}
	return data, nil
}

// DecodeEvent parses a server frame. Clients use it; the server never does.
func DecodeEvent(data []byte) (Event, error) {
	typ, err := readType(data)
	if err != nil {
		return nil, err
	}

	var ev Event
	switch typ {
	case TypeState:
		var e StateEvent
		err = decodeInto(data, &e)
		ev = e
	case TypeError:
		var e ErrorEvent
		err = decodeInto(data, &e)
		ev = e
	case TypeFriendsUpdated:
		var e FriendsUpdatedEvent
		err = decodeInto(data, &e)
		ev = e
	case TypeGroupCreated:
		var e GroupCreatedEvent
		err = decodeInto(data, &e)
		ev = e
	case TypeGroupUpdated:
		var e GroupUpdatedEvent
		err = decodeInto(data, &e)
		ev = e
	case TypeAlarm:
		var e AlarmEvent
		err = decodeInto(data, &e)
		ev = e
	case TypeCallPresence:
		var e CallPresenceEvent
		err = decodeInto(data, &e)
		ev = e
	case TypeWebRTC:
		var e WebRTCEvent
		err = decodeInto(data, &e)
		ev = e
	default:
		return nil, &UnknownTypeError{Type: typ}
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}
