package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/NicolasHaas/sosmeet/pkg/protocol"
	"github.com/NicolasHaas/sosmeet/pkg/signaling"
)

// Sender is the part of Client a Mesh needs.
type Sender interface {
	Send(cmd protocol.Command) error
}

// SessionDescriber is the local media stack. It produces session
// descriptions and consumes the remote side's; SDP generation is outside
// this package.
type SessionDescriber interface {
	CreateOffer(remote string) (string, error)
	CreateAnswer(remote string) (string, error)
	SetRemoteDescription(remote string, kind signaling.Kind, sdp string) error
	AddICECandidate(remote string, candidate json.RawMessage) error
}

// Mesh sets up a full-mesh call within one group: on Join it asks who is
// online, offers to each of them, answers incoming offers and feeds ICE
// candidates through a signaling.Peer per remote user.
type Mesh struct {
	me      string
	groupID string
	sender  Sender
	media   SessionDescriber

	mu     sync.Mutex
	peers  map[string]*signaling.Peer
	joined bool
}

func NewMesh(me, groupID string, sender Sender, media SessionDescriber) *Mesh {
	return &Mesh{
		me:      me,
		groupID: groupID,
		sender:  sender,
		media:   media,
		peers:   make(map[string]*signaling.Peer),
	}
}

// endpoint binds a SessionDescriber to one remote user.
type endpoint struct {
	remote string
	media  SessionDescriber
}

func (e endpoint) SetRemoteDescription(kind signaling.Kind, sdp string) error {
	return e.media.SetRemoteDescription(e.remote, kind, sdp)
}

func (e endpoint) AddICECandidate(c json.RawMessage) error {
	return e.media.AddICECandidate(e.remote, c)
}

// Join asks the relay for the group's online members. Offers go out when the
// call_presence reply reaches HandleEvent.
func (m *Mesh) Join() error {
	m.mu.Lock()
	m.joined = true
	m.mu.Unlock()
	return m.sender.Send(protocol.CallPresence{GroupID: m.groupID})
}

// peer returns the Peer for remote, creating it if needed. The
// lexicographically greater name is the polite side of a collision.
// Must be called with m.mu held.
func (m *Mesh) peer(remote string) *signaling.Peer {
	p, ok := m.peers[remote]
	if !ok || p.State() == signaling.StateClosed {
		p = signaling.NewPeer(remote, m.me > remote, endpoint{remote: remote, media: m.media})
		m.peers[remote] = p
	}
	return p
}

// HandleEvent consumes events relevant to this call and ignores the rest.
func (m *Mesh) HandleEvent(ev protocol.Event) error {
	switch ev := ev.(type) {
	case protocol.CallPresenceEvent:
		if ev.GroupID != m.groupID {
			return nil
		}
		return m.dial(ev.OnlineMembers)
	case protocol.WebRTCEvent:
		if ev.GroupID != m.groupID {
			return nil
		}
		return m.receive(ev.From, ev.Payload)
	default:
		return nil
	}
}

func (m *Mesh) dial(online []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.joined {
		return nil
	}
	for _, remote := range online {
		if remote == m.me {
			continue
		}
		p := m.peer(remote)
		if p.State() != signaling.StateNew {
			continue
		}
		sdp, err := m.media.CreateOffer(remote)
		if err != nil {
			return fmt.Errorf("mesh: offer to %s: %w", remote, err)
		}
		if err := p.LocalOffer(); err != nil {
			return fmt.Errorf("mesh: offer to %s: %w", remote, err)
		}
		if err := m.send(remote, signaling.Offer(sdp)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mesh) receive(from string, raw json.RawMessage) error {
	pl, err := signaling.ParsePayload(raw)
	if err != nil {
		return fmt.Errorf("mesh: from %s: %w", from, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.joined {
		slog.Debug("ignoring signaling outside a call", "from", from, "kind", pl.Kind)
		return nil
	}

	p := m.peer(from)
	needAnswer, err := p.Receive(pl)
	if err != nil {
		return fmt.Errorf("mesh: from %s: %w", from, err)
	}
	if !needAnswer {
		return nil
	}
	sdp, err := m.media.CreateAnswer(from)
	if err != nil {
		return fmt.Errorf("mesh: answer to %s: %w", from, err)
	}
	if err := p.LocalAnswer(); err != nil {
		return fmt.Errorf("mesh: answer to %s: %w", from, err)
	}
	return m.send(from, signaling.Answer(sdp))
}

// SendCandidate forwards a local ICE candidate for remote.
func (m *Mesh) SendCandidate(remote string, candidate json.RawMessage) error {
	return m.send(remote, signaling.ICE(candidate))
}

func (m *Mesh) send(remote string, pl signaling.Payload) error {
	raw, err := pl.Encode()
	if err != nil {
		return err
	}
	return m.sender.Send(protocol.WebRTC{GroupID: m.groupID, To: remote, Payload: raw})
}

// States reports the handshake state per remote user.
func (m *Mesh) States() map[string]signaling.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]signaling.State, len(m.peers))
	for name, p := range m.peers {
		out[name] = p.State()
	}
	return out
}

// Leave closes every peer. Later signaling for this call is ignored.
func (m *Mesh) Leave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined = false
	for _, p := range m.peers {
		p.Close()
	}
}
