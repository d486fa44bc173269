package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/NicolasHaas/sosmeet/pkg/client"
	"github.com/NicolasHaas/sosmeet/pkg/protocol"
	"github.com/NicolasHaas/sosmeet/pkg/signaling"
)

// signalOnly is a media stack without media: it answers the handshake with
// placeholder descriptions and prints each step, so a terminal can check
// that every online member of a group is reachable through the relay.
type signalOnly struct {
	me string
}

func (s signalOnly) describe(kind, remote string) string {
	return fmt.Sprintf("v=0\r\no=%s 0 0 IN IP4 0.0.0.0\r\ns=%s to %s\r\nt=0 0\r\n", s.me, kind, remote)
}

func (s signalOnly) CreateOffer(remote string) (string, error) {
	fmt.Printf("call: offer -> %s\n", remote)
	return s.describe("offer", remote), nil
}

func (s signalOnly) CreateAnswer(remote string) (string, error) {
	fmt.Printf("call: answer -> %s\n", remote)
	return s.describe("answer", remote), nil
}

func (s signalOnly) SetRemoteDescription(remote string, kind signaling.Kind, _ string) error {
	fmt.Printf("call: %s <- %s\n", kind, remote)
	return nil
}

func (s signalOnly) AddICECandidate(remote string, _ json.RawMessage) error {
	fmt.Printf("call: ice <- %s\n", remote)
	return nil
}

// calls holds the terminal's current call, if any. Events arrive on the
// receive goroutine while commands come from stdin.
type calls struct {
	me     string
	sender client.Sender

	mu   sync.Mutex
	mesh *client.Mesh
}

// handle is the client's event handler: it prints ev and feeds the call.
func (c *calls) handle(ev protocol.Event) {
	printEvent(ev)
	c.mu.Lock()
	m := c.mesh
	c.mu.Unlock()
	if m == nil {
		return
	}
	if err := m.HandleEvent(ev); err != nil {
		slog.Warn("call signaling", "err", err)
	}
}

// join leaves any current call and joins groupID's.
func (c *calls) join(groupID string) error {
	c.hangup()
	m := client.NewMesh(c.me, groupID, c.sender, signalOnly{me: c.me})
	c.mu.Lock()
	c.mesh = m
	c.mu.Unlock()
	return m.Join()
}

// hangup leaves the current call and returns the final handshake states,
// one "user STATE" line per peer.
func (c *calls) hangup() []string {
	c.mu.Lock()
	m := c.mesh
	c.mesh = nil
	c.mu.Unlock()
	if m == nil {
		return nil
	}
	states := m.States()
	m.Leave()

	out := make([]string, 0, len(states))
	for name, st := range states {
		out = append(out, name+" "+st.String())
	}
	sort.Strings(out)
	return out
}

// runCallCommand handles /call and /hangup. It reports false for other lines.
func (c *calls) runCallCommand(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	switch fields[0] {
	case "/call":
		if len(fields) != 2 {
			return true, fmt.Errorf("usage: /call <groupId>")
		}
		return true, c.join(fields[1])
	case "/hangup":
		for _, st := range c.hangup() {
			fmt.Println("call:", st)
		}
		return true, nil
	default:
		return false, nil
	}
}
