package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// State is the handshake progress with one remote peer.
type State int

const (
	StateNew State = iota
	StateOfferSent
	StateOfferReceived
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateOfferSent:
		return "OFFER_SENT"
	case StateOfferReceived:
		return "OFFER_RECEIVED"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrClosed            = errors.New("signaling: peer closed")
	ErrInvalidTransition = errors.New("signaling: invalid transition")
)

// Endpoint is the local media stack a Peer drives.
type Endpoint interface {
	SetRemoteDescription(kind Kind, sdp string) error
	AddICECandidate(candidate json.RawMessage) error
}

// Peer tracks the handshake with one remote user. It is safe for concurrent use.
//
// Offer collisions are resolved with the polite/impolite rule: a polite peer
// abandons its own offer and accepts the remote one, an impolite peer ignores
// the remote offer.
type Peer struct {
	mu sync.Mutex

	remote    string
	polite    bool
	state     State
	remoteSet bool
	pending   []json.RawMessage
	ep        Endpoint
}

// NewPeer creates a peer in StateNew.
func NewPeer(remote string, polite bool, ep Endpoint) *Peer {
	return &Peer{remote: remote, polite: polite, ep: ep}
}

func (p *Peer) Remote() string { return p.remote }

func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pending reports how many ICE candidates are waiting for the remote description.
func (p *Peer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// LocalOffer records that an offer was sent. NEW -> OFFER_SENT.
func (p *Peer) LocalOffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case StateClosed:
		return ErrClosed
	case StateNew:
		p.state = StateOfferSent
		return nil
	default:
		return fmt.Errorf("%w: offer from %s", ErrInvalidTransition, p.state)
	}
}

// LocalAnswer records that an answer was sent. OFFER_RECEIVED -> CONNECTED.
func (p *Peer) LocalAnswer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case StateClosed:
		return ErrClosed
	case StateOfferReceived:
		p.state = StateConnected
		return nil
	default:
		return fmt.Errorf("%w: answer from %s", ErrInvalidTransition, p.state)
	}
}

// Receive applies a payload from the remote peer. It reports whether the
// payload was an offer that the caller must now answer.
func (p *Peer) Receive(pl Payload) (needAnswer bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed {
		return false, ErrClosed
	}

	switch pl.Kind {
	case KindOffer:
		return p.receiveOffer(pl.SDP)
	case KindAnswer:
		if p.state != StateOfferSent {
			return false, fmt.Errorf("%w: answer in %s", ErrInvalidTransition, p.state)
		}
		if err := p.setRemote(KindAnswer, pl.SDP); err != nil {
			return false, err
		}
		p.state = StateConnected
		return false, nil
	case KindICE:
		if !p.remoteSet {
			p.pending = append(p.pending, pl.Candidate)
			return false, nil
		}
		if err := p.ep.AddICECandidate(pl.Candidate); err != nil {
			return false, fmt.Errorf("signaling: add candidate from %s: %w", p.remote, err)
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownKind, pl.Kind)
	}
}

func (p *Peer) receiveOffer(sdp string) (bool, error) {
	switch p.state {
	case StateNew:
	case StateOfferSent:
		if !p.polite {
			return false, nil
		}
		// Roll back our own offer; the remote one wins.
		p.state = StateNew
		p.remoteSet = false
	default:
		return false, fmt.Errorf("%w: offer in %s", ErrInvalidTransition, p.state)
	}
	if err := p.setRemote(KindOffer, sdp); err != nil {
		return false, err
	}
	p.state = StateOfferReceived
	return true, nil
}

// setRemote applies the description and flushes buffered candidates.
// Must be called with p.mu held.
func (p *Peer) setRemote(kind Kind, sdp string) error {
	if err := p.ep.SetRemoteDescription(kind, sdp); err != nil {
		return fmt.Errorf("signaling: set remote %s from %s: %w", kind, p.remote, err)
	}
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	for _, c := range pending {
		if err := p.ep.AddICECandidate(c); err != nil {
			return fmt.Errorf("signaling: flush candidate from %s: %w", p.remote, err)
		}
	}
	return nil
}

// Close moves the peer to CLOSED and drops buffered candidates.
func (p *Peer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateClosed
	p.pending = nil
}
