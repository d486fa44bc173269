package server

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/NicolasHaas/sosmeet/pkg/model"
	"github.com/NicolasHaas/sosmeet/pkg/protocol"
	"github.com/NicolasHaas/sosmeet/pkg/rbac"
	"github.com/NicolasHaas/sosmeet/pkg/store"
)

// SignalingRelay forwards handshake payloads between users and answers the
// presence query mesh calls start from. Payloads are never inspected.
type SignalingRelay struct {
	store   store.DataStore
	dir     *Directory
	router  *Router
	metrics *Metrics
}

func NewSignalingRelay(st store.DataStore, dir *Directory, router *Router, metrics *Metrics) *SignalingRelay {
	return &SignalingRelay{store: st, dir: dir, router: router, metrics: metrics}
}

// Relay forwards payload to the live connection of to. It reports false when
// the recipient is offline or its queue is full; neither is an error.
func (r *SignalingRelay) Relay(from, to, groupID string, payload json.RawMessage) bool {
	c := r.dir.Lookup(to)
	if c == nil {
		r.metrics.SignalsDropped.Add(1)
		slog.Debug("webrtc recipient offline", "from", from, "to", to, "group", groupID)
		return false
	}
	ok := r.router.Send(c, protocol.WebRTCEvent{From: from, GroupID: groupID, Payload: payload})
	if ok {
		r.metrics.SignalsRelayed.Add(1)
	} else {
		r.metrics.SignalsDropped.Add(1)
	}
	return ok
}

// Presence returns the members of groupID with a live connection, in
// membership order. requester must be a member.
func (r *SignalingRelay) Presence(groupID, requester string) ([]string, error) {
	g, err := r.store.GetGroup(groupID)
	if err != nil {
		return nil, fmt.Errorf("signaling: presence: %w", err)
	}
	if g == nil {
		return nil, fmt.Errorf("signaling: presence %s: %w", groupID, model.ErrGroupNotFound)
	}
	if err := rbac.Require(g, requester, model.PermViewPresence); err != nil {
		return nil, fmt.Errorf("signaling: presence: %w", err)
	}
	return r.dir.Online(g.Members), nil
}
