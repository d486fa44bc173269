package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/sosmeet/pkg/protocol"
	"github.com/NicolasHaas/sosmeet/pkg/store"
)

type testEnv struct {
	d       *Dispatcher
	dir     *Directory
	metrics *Metrics
	store   store.DataStore
}

func newTestEnv(t *testing.T, opts DispatcherOptions) *testEnv {
	t.Helper()
	st := store.NewMemory()
	dir := NewDirectory()
	metrics := NewMetrics()
	return &testEnv{
		d:       NewDispatcher(st, dir, metrics, opts),
		dir:     dir,
		metrics: metrics,
		store:   st,
	}
}

// testConn is a Conn without a socket; frames stay in its send queue.
func testConn(queue int) *Conn {
	return newConn(nil, nil, "pipe", queue, protocol.MaxMessageSize)
}

func (e *testEnv) send(t *testing.T, c *Conn, cmd protocol.Command) {
	t.Helper()
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	e.d.HandleFrame(c, data)
}

func (e *testEnv) login(t *testing.T, username string) *Conn {
	t.Helper()
	c := testConn(64)
	e.send(t, c, protocol.Login{Username: username})
	evs := drain(t, c)
	require.Len(t, evs, 1)
	require.IsType(t, protocol.StateEvent{}, evs[0])
	return c
}

// drain decodes every frame queued on c.
func drain(t *testing.T, c *Conn) []protocol.Event {
	t.Helper()
	var out []protocol.Event
	for {
		select {
		case frame := <-c.send:
			ev, err := protocol.DecodeEvent(frame)
			require.NoError(t, err)
			out = append(out, ev)
		default:
			return out
		}
	}
}

func requireError(t *testing.T, c *Conn, message string) {
	t.Helper()
	evs := drain(t, c)
	require.Len(t, evs, 1)
	require.Equal(t, protocol.ErrorEvent{Message: message}, evs[0])
}
