package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/sosmeet/pkg/protocol"
)

type queueSender struct {
	out []protocol.Command
}

func (q *queueSender) Send(cmd protocol.Command) error {
	q.out = append(q.out, cmd)
	return nil
}

// relay hands every queued webrtc command from sender to the other terminal.
func relay(from string, q *queueSender, to *calls) {
	pending := q.out
	q.out = nil
	for _, cmd := range pending {
		if w, ok := cmd.(protocol.WebRTC); ok {
			to.handle(protocol.WebRTCEvent{From: from, GroupID: w.GroupID, Payload: w.Payload})
		}
	}
}

func TestCallHandshakeBetweenTerminals(t *testing.T) {
	aq, bq := &queueSender{}, &queueSender{}
	alice := &calls{me: "alice", sender: aq}
	bob := &calls{me: "bobby", sender: bq}

	for _, c := range []*calls{alice, bob} {
		handled, err := c.runCallCommand("/call grp_1")
		require.True(t, handled)
		require.NoError(t, err)
	}
	require.Equal(t, []protocol.Command{protocol.CallPresence{GroupID: "grp_1"}}, aq.out)
	aq.out, bq.out = nil, nil

	alice.handle(protocol.CallPresenceEvent{GroupID: "grp_1", OnlineMembers: []string{"alice", "bobby"}})
	require.Len(t, aq.out, 1)
	relay("alice", aq, bob)
	require.Len(t, bq.out, 1)
	relay("bobby", bq, alice)

	assert.Equal(t, []string{"bobby CONNECTED"}, alice.hangup())
	assert.Equal(t, []string{"alice CONNECTED"}, bob.hangup())
	assert.Nil(t, alice.hangup())
}

func TestCallCommandParsing(t *testing.T) {
	c := &calls{me: "alice", sender: &queueSender{}}

	handled, err := c.runCallCommand("/call")
	assert.True(t, handled)
	assert.Error(t, err)

	handled, err = c.runCallCommand("/hangup")
	assert.True(t, handled)
	assert.NoError(t, err)

	handled, _ = c.runCallCommand("/group Family")
	assert.False(t, handled)
	handled, _ = c.runCallCommand("  ")
	assert.False(t, handled)
}
