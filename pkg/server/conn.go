package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/sosmeet/pkg/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be less than pongWait
)

// Conn is one WebSocket client, which is one session. The read pump hands
// frames to the Hub; the write pump drains the bounded send queue.
//
// username, superseded and closed belong to the Hub goroutine.
type Conn struct {
	id             string
	ws             *websocket.Conn
	hub            *Hub
	send           chan []byte
	addr           string
	maxMessageSize int64

	username   string
	superseded bool // a newer login took over username
	closed     bool
}

func newConn(ws *websocket.Conn, hub *Hub, addr string, queue int, maxMessageSize int64) *Conn {
	if ws != nil {
		ws.SetReadLimit(maxMessageSize)
	}
	return &Conn{
		id:             model.NewID(model.PrefixSession),
		ws:             ws,
		hub:            hub,
		send:           make(chan []byte, queue),
		addr:           addr,
		maxMessageSize: maxMessageSize,
	}
}

// ID returns the session identifier.
func (c *Conn) ID() string { return c.id }

// Username returns the bound username, empty before login.
func (c *Conn) Username() string { return c.username }

// enqueue never blocks; it reports false when the queue is full or closed.
func (c *Conn) enqueue(frame []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.unregisterConn(c)
		if err := c.ws.Close(); err != nil && !isExpectedCloseError(err) {
			slog.Debug("close after read failed", "session", c.id, "err", err)
		}
	}()

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Debug("set read deadline", "session", c.id, "err", err)
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if !c.hub.submit(c, data) {
			return
		}
	}
}

func (c *Conn) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		slog.Warn("message exceeded size limit", "session", c.id, "addr", c.addr, "limit", c.maxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		slog.Debug("client disconnected", "session", c.id, "addr", c.addr)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		slog.Debug("connection closed", "session", c.id, "addr", c.addr, "err", err)
	default:
		slog.Warn("websocket read error", "session", c.id, "addr", c.addr, "err", err)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.ws.Close(); err != nil && !isExpectedCloseError(err) {
			slog.Debug("close after write failed", "session", c.id, "err", err)
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One event per WebSocket message; clients parse each frame as a
			// single JSON object.
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !isExpectedCloseError(err) {
					slog.Debug("websocket write error", "session", c.id, "err", err)
				}
				return
			}
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
