package server

import (
	"log/slog"

	"github.com/NicolasHaas/sosmeet/pkg/protocol"
)

// Router fans events out to users through the Directory. Delivery is
// at-most-once: offline users are skipped and full queues drop the frame.
type Router struct {
	dir     *Directory
	metrics *Metrics
}

func NewRouter(dir *Directory, metrics *Metrics) *Router {
	return &Router{dir: dir, metrics: metrics}
}

// Deliver encodes ev once and enqueues it for every listed user with a live
// connection. It returns the number of connections that accepted the frame.
func (r *Router) Deliver(usernames []string, ev protocol.Event) int {
	frame, err := protocol.EncodeEvent(ev)
	if err != nil {
		slog.Error("encode event failed", "event", ev.EventType(), "err", err)
		return 0
	}

	delivered := 0
	for _, u := range usernames {
		c := r.dir.Lookup(u)
		if c == nil {
			r.metrics.OfflineSkips.Add(1)
			continue
		}
		if r.push(c, frame, ev) {
			delivered++
		}
	}
	return delivered
}

// Send enqueues ev on a single connection.
func (r *Router) Send(c *Conn, ev protocol.Event) bool {
	frame, err := protocol.EncodeEvent(ev)
	if err != nil {
		slog.Error("encode event failed", "event", ev.EventType(), "err", err)
		return false
	}
	return r.push(c, frame, ev)
}

func (r *Router) push(c *Conn, frame []byte, ev protocol.Event) bool {
	if !c.enqueue(frame) {
		r.metrics.EventsDropped.Add(1)
		slog.Warn("outbound queue full, dropping event",
			"session", c.ID(), "user", c.Username(), "event", ev.EventType())
		return false
	}
	r.metrics.EventsDelivered.Add(1)
	return true
}
