package server

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// inboundFrame is one frame read from conn, or, with closing set, the marker
// the read pump sends last when the connection ends.
type inboundFrame struct {
	conn    *Conn
	data    []byte
	closing bool
}

// Hub is the single serialization point. Its Run loop owns the Dispatcher:
// every registration, inbound frame and disconnect is processed there, one
// at a time. A connection's frames and its close marker share one queue, so
// everything read before a disconnect is handled before the unbind.
type Hub struct {
	dispatcher *Dispatcher
	metrics    *Metrics

	conns    map[*Conn]struct{}
	register chan *Conn
	inbound  chan inboundFrame

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(d *Dispatcher, metrics *Metrics) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		dispatcher: d,
		metrics:    metrics,
		conns:      make(map[*Conn]struct{}),
		register:   make(chan *Conn),
		inbound:    make(chan inboundFrame, 64),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// registerConn hands a new connection to the loop. It returns false once the
// hub is shutting down.
func (h *Hub) registerConn(c *Conn) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// unregisterConn queues the close marker behind c's pending frames.
func (h *Hub) unregisterConn(c *Conn) {
	h.enqueue(inboundFrame{conn: c, closing: true})
}

func (h *Hub) submit(c *Conn, data []byte) bool {
	return h.enqueue(inboundFrame{conn: c, data: data})
}

func (h *Hub) enqueue(f inboundFrame) bool {
	select {
	case h.inbound <- f:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Run processes hub events until Shutdown. Call it in its own goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownConns()
			return

		case c := <-h.register:
			h.conns[c] = struct{}{}
			h.metrics.TotalConnections.Add(1)
			h.metrics.ActiveConnections.Add(1)
			slog.Info("client connected", "session", c.id, "addr", c.addr, "clients", len(h.conns))

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				c.writePump()
			}()
			go func() {
				defer h.wg.Done()
				c.readPump()
			}()

		case f := <-h.inbound:
			if _, ok := h.conns[f.conn]; !ok {
				continue
			}
			if f.closing {
				h.disconnect(f.conn)
				continue
			}
			h.dispatcher.HandleFrame(f.conn, f.data)
		}
	}
}

func (h *Hub) disconnect(c *Conn) {
	delete(h.conns, c)
	h.dispatcher.Disconnect(c)
	c.closed = true
	close(c.send)
	h.metrics.ActiveConnections.Add(-1)
	h.metrics.TotalDisconnects.Add(1)
	slog.Info("client disconnected", "session", c.id, "user", c.username, "clients", len(h.conns))
}

func (h *Hub) shutdownConns() {
	for c := range h.conns {
		h.dispatcher.Disconnect(c)
		c.closed = true
		close(c.send)
		if err := c.ws.Close(); err != nil && !isExpectedCloseError(err) {
			slog.Debug("close on shutdown failed", "session", c.id, "err", err)
		}
		delete(h.conns, c)
	}
	h.metrics.ActiveConnections.Store(0)
	slog.Info("closed client connections")
}

// Shutdown stops the loop and waits for every pump to exit, or for timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		slog.Warn("hub shutdown timed out; pumps still running")
		return context.DeadlineExceeded
	}
}
