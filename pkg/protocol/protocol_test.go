package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/sosmeet/pkg/model"
	"github.com/NicolasHaas/sosmeet/pkg/protocol"
)

func TestDecodeCommand(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		raw  string
		want protocol.Command
	}{
		"login_normalized": {
			raw:  `{"type":"login","username":"  Alice "}`,
			want: protocol.Login{Username: "alice"},
		},
		"add_friend": {
			raw:  `{"type":"add_friend","friend":"BOB"}`,
			want: protocol.AddFriend{Friend: "bob"},
		},
		"create_group_trimmed": {
			raw:  `{"type":"create_group","name":" Family "}`,
			want: protocol.CreateGroup{Name: "Family"},
		},
		"add_member": {
			raw:  `{"type":"add_member","groupId":"grp_1","member":"Carol"}`,
			want: protocol.AddMember{GroupID: "grp_1", Member: "carol"},
		},
		"create_alarm_code": {
			raw:  `{"type":"create_alarm_code","groupId":"grp_1","title":"Evac","mode":"CALL_LIKE"}`,
			want: protocol.CreateAlarmCode{GroupID: "grp_1", Title: "Evac", Mode: "CALL_LIKE"},
		},
		"trigger_alarm": {
			raw:  `{"type":"trigger_alarm","groupId":"grp_1","codeId":"code_1","messageOverride":"hi"}`,
			want: protocol.TriggerAlarm{GroupID: "grp_1", CodeID: "code_1", MessageOverride: "hi"},
		},
		"call_presence": {
			raw:  `{"type":"call_presence","groupId":"grp_1"}`,
			want: protocol.CallPresence{GroupID: "grp_1"},
		},
		"webrtc_keeps_payload": {
			raw:  `{"type":"webrtc","groupId":"grp_1","to":"alice","payload":{"kind":"offer","sdp":"v=0"}}`,
			want: protocol.WebRTC{GroupID: "grp_1", To: "alice", Payload: json.RawMessage(`{"kind":"offer","sdp":"v=0"}`)},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := protocol.DecodeCommand([]byte(tc.raw))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeCommandErrors(t *testing.T) {
	t.Parallel()

	_, err := protocol.DecodeCommand([]byte(`not json`))
	require.ErrorIs(t, err, protocol.ErrMalformed)

	_, err = protocol.DecodeCommand([]byte(`{"username":"alice"}`))
	require.ErrorIs(t, err, protocol.ErrMalformed)

	_, err = protocol.DecodeCommand([]byte(`{"type":"login","username":42}`))
	var verr *protocol.ValidationError
	require.ErrorAs(t, err, &verr)
	require.NotErrorIs(t, err, protocol.ErrMalformed)
	require.Equal(t, protocol.TypeLogin, verr.Command)
	require.Equal(t, "username", verr.Field)
	require.Equal(t, "username must be a string", verr.Message)

	_, err = protocol.DecodeCommand([]byte(`{"type":"trigger_alarm","groupId":"grp_1","codeId":["code_1"]}`))
	require.ErrorAs(t, err, &verr)
	require.Equal(t, protocol.TypeTriggerAlarm, verr.Command)
	require.Equal(t, "codeId", verr.Field)

	_, err = protocol.DecodeCommand([]byte(`{"type":"delete_group","groupId":"grp_1"}`))
	var unknown *protocol.UnknownTypeError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "delete_group", unknown.Type)
	require.Equal(t, "unknown command type: delete_group", err.Error())
}

func TestCommandRoundTrip(t *testing.T) {
	t.Parallel()

	cmd := protocol.TriggerAlarm{GroupID: "grp_1", CodeID: "code_1"}
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"trigger_alarm","groupId":"grp_1","codeId":"code_1"}`, string(data))

	got, err := protocol.DecodeCommand(data)
	require.NoError(t, err)
	require.Equal(t, cmd, got)
}

func TestEncodeEventShapes(t *testing.T) {
	t.Parallel()

	created := time.UnixMilli(1714564800000).UTC()
	g := &model.Group{
		ID:      "grp_1",
		Name:    "Family",
		Owner:   "alice",
		Members: []string{"alice", "bob"},
		AlarmCodes: []model.AlarmCode{{
			ID: "code_1", Title: "SOS", ColorHex: "#ff2d2d", SoundKey: "sos",
			Mode: model.ModeCallLike, MessageText: "I need help now.", CreatedBy: "alice", CreatedAt: created,
		}},
	}

	tests := map[string]struct {
		event protocol.Event
		want  string
	}{
		"error": {
			event: protocol.ErrorEvent{Message: "You must login first."},
			want:  `{"type":"error","message":"You must login first."}`,
		},
		"friends_updated": {
			event: protocol.FriendsUpdatedEvent{UserA: "alice", UserB: "bob"},
			want:  `{"type":"friends_updated","userA":"alice","userB":"bob"}`,
		},
		"group_created": {
			event: protocol.GroupCreatedEvent{Group: protocol.NewGroupView(g)},
			want: `{"type":"group_created","group":{"id":"grp_1","name":"Family","owner":"alice","members":["alice","bob"],
				"alarmCodes":[{"id":"code_1","title":"SOS","colorHex":"#ff2d2d","soundKey":"sos","mode":"CALL_LIKE",
				"messageText":"I need help now.","createdBy":"alice","createdAt":1714564800000}]}}`,
		},
		"empty_state": {
			event: protocol.StateEvent{Me: "alice", Friends: []string{}, Groups: protocol.NewGroupViews(nil)},
			want:  `{"type":"state","me":"alice","friends":[],"groups":[]}`,
		},
		"call_presence": {
			event: protocol.CallPresenceEvent{GroupID: "grp_1", OnlineMembers: []string{"alice"}},
			want:  `{"type":"call_presence","groupId":"grp_1","onlineMembers":["alice"]}`,
		},
		"webrtc": {
			event: protocol.WebRTCEvent{From: "bob", GroupID: "grp_1", Payload: json.RawMessage(`{"kind":"ice","candidate":{}}`)},
			want:  `{"type":"webrtc","from":"bob","groupId":"grp_1","payload":{"kind":"ice","candidate":{}}}`,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			data, err := protocol.EncodeEvent(tc.event)
			require.NoError(t, err)
			require.JSONEq(t, tc.want, string(data))

			back, err := protocol.DecodeEvent(data)
			require.NoError(t, err)
			require.Equal(t, tc.event.EventType(), back.EventType())
		})
	}
}

func TestNewAlarmView(t *testing.T) {
	t.Parallel()

	code := &model.AlarmCode{ID: "code_1", Title: "Evac", ColorHex: "#00ff00", SoundKey: "ping", Mode: model.ModeCallLike, MessageText: "Leave"}
	at := time.UnixMilli(1714564800123).UTC()
	ev := model.NewAlarmEvent("grp_1", code, "alice", "", at)

	view := protocol.NewAlarmView(ev)
	require.Equal(t, "Evac", view.CodeTitle)
	require.Equal(t, "CALL_LIKE", view.Mode)
	require.Equal(t, "Leave", view.MessageText)
	require.Equal(t, "alice", view.TriggeredBy)
	require.Equal(t, int64(1714564800123), view.TriggeredAt)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cmd     protocol.Command
		field   string
		message string
	}{
		"login_ok":        {cmd: protocol.Login{Username: "alice"}},
		"login_empty":     {cmd: protocol.Login{Username: ""}, field: "username", message: protocol.UsernameTooShortMessage},
		"login_short":     {cmd: protocol.Login{Username: "al"}, field: "username", message: protocol.UsernameTooShortMessage},
		"friend_missing":  {cmd: protocol.AddFriend{}, field: "friend", message: "friend is required"},
		"name_missing":    {cmd: protocol.CreateGroup{}, field: "name", message: "name is required"},
		"member_missing":  {cmd: protocol.AddMember{GroupID: "grp_1"}, field: "member", message: "member is required"},
		"group_missing":   {cmd: protocol.CallPresence{}, field: "groupId", message: "groupId is required"},
		"code_missing":    {cmd: protocol.TriggerAlarm{GroupID: "grp_1"}, field: "codeId", message: "codeId is required"},
		"to_missing":      {cmd: protocol.WebRTC{GroupID: "grp_1"}, field: "to", message: "to is required"},
		"member_too_long": {cmd: protocol.AddMember{GroupID: "grp_1", Member: "abcdefghijklmnopqrstuvwxyz0123456789"}, field: "member"},
		"alarm_code_ok":   {cmd: protocol.CreateAlarmCode{GroupID: "grp_1"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			err := protocol.Validate(tc.cmd)
			if tc.field == "" {
				require.NoError(t, err)
				return
			}
			var verr *protocol.ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			require.Equal(t, tc.field, verr.Field)
			if tc.message != "" {
				require.Equal(t, tc.message, verr.Message)
			}
		})
	}
}
