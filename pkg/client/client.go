// Package client is a Go client for the SOS Meet relay, plus a coordinator
// that drives full-mesh call setup over it.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/sosmeet/pkg/protocol"
)

// ErrClosed is returned by Next once the connection is gone.
var ErrClosed = errors.New("client: connection closed")

// EventHandler is a callback for incoming server events.
type EventHandler func(ev protocol.Event)

// Client holds one WebSocket session with the relay.
type Client struct {
	ws      *websocket.Conn
	mu      sync.Mutex // serializes writes
	handler EventHandler
	events  chan protocol.Event
	done    chan struct{}
}

// Dial connects to the relay's /ws endpoint, e.g. "ws://localhost:3000/ws".
func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", url, err)
	}
	return &Client{
		ws:     ws,
		events: make(chan protocol.Event, 64),
		done:   make(chan struct{}),
	}, nil
}

// SetEventHandler routes events to handler instead of Next. Call it before
// StartReceiving.
func (c *Client) SetEventHandler(handler EventHandler) {
	c.handler = handler
}

// Send writes one command frame.
func (c *Client) Send(cmd protocol.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(cmd); err != nil {
		return fmt.Errorf("client: send %s: %w", cmd.CommandType(), err)
	}
	return nil
}

// Login sends a login command and waits for the state snapshot. It must be
// called before StartReceiving.
func (c *Client) Login(username string) (*protocol.StateEvent, error) {
	if err := c.Send(protocol.Login{Username: username}); err != nil {
		return nil, err
	}
	ev, err := c.read()
	if err != nil {
		return nil, fmt.Errorf("client: read login response: %w", err)
	}
	switch ev := ev.(type) {
	case protocol.StateEvent:
		return &ev, nil
	case protocol.ErrorEvent:
		return nil, fmt.Errorf("login failed: %s", ev.Message)
	default:
		return nil, fmt.Errorf("client: unexpected response type %s", ev.EventType())
	}
}

func (c *Client) read() (protocol.Event, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.DecodeEvent(data)
}

// StartReceiving starts a goroutine that reads events and hands them to the
// handler, or to Next when no handler is set.
func (c *Client) StartReceiving() {
	go func() {
		defer close(c.done)
		for {
			ev, err := c.read()
			if err != nil {
				if isClosedErr(err) {
					slog.Debug("relay connection closed")
					return
				}
				var unknown *protocol.UnknownTypeError
				var invalid *protocol.ValidationError
				if errors.As(err, &unknown) || errors.As(err, &invalid) || errors.Is(err, protocol.ErrMalformed) {
					slog.Warn("ignoring undecodable event", "err", err)
					continue
				}
				slog.Error("relay read error", "err", err)
				return
			}
			if c.handler != nil {
				c.handler(ev)
				continue
			}
			c.events <- ev
		}
	}()
}

// Next returns the next event received by StartReceiving.
func (c *Client) Next(ctx context.Context) (protocol.Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.done:
		select {
		case ev := <-c.events:
			return ev, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()
	return c.ws.Close()
}

// Done returns a channel that's closed when the connection is lost.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func isClosedErr(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure)
}
