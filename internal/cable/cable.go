// Package cable is a WebSocket client for the portal's push gateway.
//
// The gateway speaks a small JSON frame protocol: the client subscribes to
// named channels, the server confirms, and data events arrive tagged with
// the channel they were published on. Whispers are client-published
// ephemeral events (no persistence, no delivery guarantee).
package cable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// DefaultPingTimeout is how long we wait without receiving any frame
// (including server pings) before treating the connection as dead.
// The gateway pings every ~5s, so 25s means ~5 missed pings.
var DefaultPingTimeout = 25 * time.Second

// ErrPingTimeout is returned when no frames arrive within the ping timeout.
var ErrPingTimeout = errors.New("ping timeout: no frames received")

// ErrClosed is returned by Subscribe/Unsubscribe after the connection drops.
var ErrClosed = errors.New("cable: connection closed")

// Control event names used by the gateway protocol.
const (
	eventEstablished         = "connection_established"
	eventPing                = "ping"
	eventSubscribe           = "subscribe"
	eventUnsubscribe         = "unsubscribe"
	eventSubscribeSucceeded  = "subscription_succeeded"
	eventSubscribeError      = "subscription_error"
	eventSubscriptionRemoved = "subscription_removed"
)

// frame is a raw gateway JSON frame.
type frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Event is a data event received from a subscribed channel.
// A non-nil Err means the connection dropped; no further events follow.
type Event struct {
	Channel string
	Name    string
	Data    json.RawMessage
	Err     error
}

// maxReadSize caps the maximum WebSocket frame size to 1 MB.
// Gateway events are small JSON; anything larger is likely malformed.
const maxReadSize = 1 << 20 // 1 MB

// Client is a push-gateway WebSocket client. One read loop owns the
// connection; Subscribe and Unsubscribe block until the server confirms,
// so at most one live listener set exists per channel name at any time.
type Client struct {
	conn        *websocket.Conn
	events      chan Event
	pingTimeout time.Duration

	mu      sync.Mutex
	waiters map[string]chan error
	closed  bool
}

// Connect dials the gateway and waits for the connection_established frame.
// The returned client's read loop is already running; Events() delivers
// data frames until the connection drops or ctx is cancelled.
func Connect(ctx context.Context, url string) (*Client, error) {
	return ConnectWithTimeout(ctx, url, DefaultPingTimeout)
}

// ConnectWithTimeout is like Connect with a configurable ping timeout.
// Use 0 to disable liveness detection (not recommended in production).
func ConnectWithTimeout(ctx context.Context, url string, pingTimeout time.Duration) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{"hireline-cable-v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(maxReadSize)

	_, data, err := conn.Read(ctx)
	if err != nil {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("parse handshake: %w", err)
	}
	if f.Event != eventEstablished {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("expected %s, got %q", eventEstablished, f.Event)
	}

	c := &Client{
		conn:        conn,
		events:      make(chan Event, 64),
		pingTimeout: pingTimeout,
		waiters:     make(map[string]chan error),
	}
	go c.readLoop(ctx)
	return c, nil
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

// Events returns the data event channel. It closes after an Err event
// when the connection drops or the connect context is cancelled.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Subscribe opens a subscription on a channel and blocks until the server
// confirms or rejects it.
func (c *Client) Subscribe(ctx context.Context, channel string) error {
	return c.await(ctx, eventSubscribe, channel)
}

// Unsubscribe tears down a channel subscription and blocks until the server
// confirms removal. Callers rely on this completing before opening a new
// subscription on the same channel name; a duplicate listener set would
// double-apply every event.
func (c *Client) Unsubscribe(ctx context.Context, channel string) error {
	return c.await(ctx, eventUnsubscribe, channel)
}

func (c *Client) await(ctx context.Context, op, channel string) error {
	ch := make(chan error, 1)
	key := op + " " + channel

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if _, dup := c.waiters[key]; dup {
		c.mu.Unlock()
		return fmt.Errorf("%s already pending for %s", op, channel)
	}
	c.waiters[key] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.waiters, key)
		c.mu.Unlock()
	}()

	cmd := frame{Event: op, Channel: channel}
	data, _ := json.Marshal(cmd)
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write %s: %w", op, err)
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Whisper publishes an ephemeral client event on a subscribed channel.
// Fire-and-forget: no acknowledgement, no retry.
func (c *Client) Whisper(ctx context.Context, channel, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whisper: %w", err)
	}
	f := frame{Event: event, Channel: channel, Data: raw}
	data, _ := json.Marshal(f)
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write whisper: %w", err)
	}
	return nil
}

// readLoop owns all reads from the connection. Control frames resolve
// pending Subscribe/Unsubscribe waiters; data frames go to the events
// channel. A rolling read deadline detects half-dead connections.
func (c *Client) readLoop(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.closed = true
		waiters := c.waiters
		c.waiters = make(map[string]chan error)
		c.mu.Unlock()
		for _, ch := range waiters {
			ch <- ErrClosed
		}
		close(c.events)
	}()

	for {
		readCtx := ctx
		var readCancel context.CancelFunc
		if c.pingTimeout > 0 {
			readCtx, readCancel = context.WithTimeout(ctx, c.pingTimeout)
		}

		_, data, err := c.conn.Read(readCtx)

		if readCancel != nil {
			readCancel()
		}

		if err != nil {
			if c.pingTimeout > 0 && ctx.Err() == nil && readCtx.Err() != nil {
				err = ErrPingTimeout
			}
			select {
			case c.events <- Event{Err: err}:
			case <-ctx.Done():
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue // skip malformed frames
		}

		switch f.Event {
		case eventPing:
			continue
		case eventSubscribeSucceeded:
			c.resolve(eventSubscribe+" "+f.Channel, nil)
		case eventSubscribeError:
			c.resolve(eventSubscribe+" "+f.Channel, fmt.Errorf("subscription rejected for %s", f.Channel))
		case eventSubscriptionRemoved:
			c.resolve(eventUnsubscribe+" "+f.Channel, nil)
		case "":
			continue
		default:
			select {
			case c.events <- Event{Channel: f.Channel, Name: f.Event, Data: f.Data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Client) resolve(key string, err error) {
	c.mu.Lock()
	ch, ok := c.waiters[key]
	if ok {
		delete(c.waiters, key)
	}
	c.mu.Unlock()
	if ok {
		ch <- err
	}
}
