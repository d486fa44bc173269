package server

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/sosmeet/pkg/protocol"
)

func TestHubHandlesQueuedFramesBeforeClose(t *testing.T) {
	env := newTestEnv(t, DispatcherOptions{})
	hub := NewHub(env.d, env.metrics)
	c := testConn(256)
	hub.conns[c] = struct{}{}
	go hub.Run()

	frame := func(cmd protocol.Command) []byte {
		data, err := json.Marshal(cmd)
		require.NoError(t, err)
		return data
	}
	require.True(t, hub.submit(c, frame(protocol.Login{Username: "alice"})))
	const n = 60
	for i := range n {
		require.True(t, hub.submit(c, frame(protocol.CreateGroup{Name: fmt.Sprintf("group %d", i)})))
	}
	hub.unregisterConn(c)

	require.Eventually(t, func() bool { return env.metrics.TotalDisconnects.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Shutdown(time.Second))

	require.EqualValues(t, n, env.metrics.GroupsCreated.Load())
	groups, err := env.store.GroupsFor("alice")
	require.NoError(t, err)
	require.Len(t, groups, n)
	require.Equal(t, "group 0", groups[0].Name)
	require.Nil(t, env.dir.Lookup("alice"))
}

func TestHubIgnoresFramesAfterClose(t *testing.T) {
	env := newTestEnv(t, DispatcherOptions{})
	hub := NewHub(env.d, env.metrics)
	c := testConn(8)
	hub.conns[c] = struct{}{}
	go hub.Run()

	hub.unregisterConn(c)
	data, err := json.Marshal(protocol.Login{Username: "alice"})
	require.NoError(t, err)
	require.True(t, hub.submit(c, data))

	require.Eventually(t, func() bool { return env.metrics.TotalDisconnects.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Shutdown(time.Second))
	require.Zero(t, env.metrics.Logins.Load())
}
