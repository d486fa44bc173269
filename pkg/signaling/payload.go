// Package signaling models the peer-to-peer handshake carried through the
// relay: typed offer/answer/ICE payloads and a per-peer state machine that
// buffers ICE candidates arriving before the remote description.
package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind discriminates signaling payloads.
type Kind string

const (
	KindOffer  Kind = "offer"
	KindAnswer Kind = "answer"
	KindICE    Kind = "ice"
)

var ErrUnknownKind = errors.New("signaling: unknown payload kind")

// Payload is the body of a webrtc command or event. The relay forwards it
// without looking inside.
type Payload struct {
	Kind      Kind            `json:"kind"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func Offer(sdp string) Payload {
	return Payload{Kind: KindOffer, SDP: sdp}
}

func Answer(sdp string) Payload {
	return Payload{Kind: KindAnswer, SDP: sdp}
}

func ICE(candidate json.RawMessage) Payload {
	return Payload{Kind: KindICE, Candidate: candidate}
}

// Encode marshals p for use as a raw webrtc payload.
func (p Payload) Encode() (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("signaling: encode %s: %w", p.Kind, err)
	}
	return data, nil
}

// ParsePayload decodes a relayed payload and checks its kind.
func ParsePayload(raw json.RawMessage) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("signaling: parse payload: %w", err)
	}
	switch p.Kind {
	case KindOffer, KindAnswer, KindICE:
		return p, nil
	default:
		return Payload{}, fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
	}
}
