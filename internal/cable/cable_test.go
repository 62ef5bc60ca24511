package cable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGateway is a scripted push-gateway server for one connection.
type mockGateway struct {
	t      *testing.T
	server *httptest.Server

	// handle receives the accepted connection and drives the session.
	handle func(ctx context.Context, conn *websocket.Conn)

	// skipEstablished suppresses the handshake frame.
	skipEstablished bool
}

func newMockGateway(t *testing.T, handle func(ctx context.Context, conn *websocket.Conn)) *mockGateway {
	t.Helper()
	g := &mockGateway{t: t, handle: handle}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{"hireline-cable-v1"},
		})
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		if !g.skipEstablished {
			g.send(ctx, conn, frame{Event: eventEstablished})
		}
		if g.handle != nil {
			g.handle(ctx, conn)
		}
	}))
	t.Cleanup(g.server.Close)
	return g
}

func (g *mockGateway) url() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http")
}

func (g *mockGateway) send(ctx context.Context, conn *websocket.Conn, f frame) {
	data, err := json.Marshal(f)
	require.NoError(g.t, err)
	require.NoError(g.t, conn.Write(ctx, websocket.MessageText, data))
}

func (g *mockGateway) read(ctx context.Context, conn *websocket.Conn) frame {
	_, data, err := conn.Read(ctx)
	require.NoError(g.t, err)
	var f frame
	require.NoError(g.t, json.Unmarshal(data, &f))
	return f
}

// echoSubscriptions confirms every subscribe/unsubscribe it reads.
func echoSubscriptions(g *mockGateway) func(ctx context.Context, conn *websocket.Conn) {
	return func(ctx context.Context, conn *websocket.Conn) {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var f frame
			if json.Unmarshal(data, &f) != nil {
				continue
			}
			switch f.Event {
			case eventSubscribe:
				g.send(ctx, conn, frame{Event: eventSubscribeSucceeded, Channel: f.Channel})
			case eventUnsubscribe:
				g.send(ctx, conn, frame{Event: eventSubscriptionRemoved, Channel: f.Channel})
			}
		}
	}
}

func TestConnectWaitsForEstablished(t *testing.T) {
	g := newMockGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		<-ctx.Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx, g.url())
	require.NoError(t, err)
	c.Close()
}

func TestConnectRejectsWrongHandshake(t *testing.T) {
	var g *mockGateway
	g = newMockGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		g.send(ctx, conn, frame{Event: "something_else"})
		<-ctx.Done()
	})
	g.skipEstablished = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Connect(ctx, g.url())
	require.Error(t, err)
	assert.Contains(t, err.Error(), eventEstablished)
}

func TestSubscribeBlocksUntilConfirmed(t *testing.T) {
	var g *mockGateway
	g = newMockGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		f := g.read(ctx, conn)
		assert.Equal(t, eventSubscribe, f.Event)
		assert.Equal(t, "private-support-conversation.7", f.Channel)
		g.send(ctx, conn, frame{Event: eventSubscribeSucceeded, Channel: f.Channel})
		<-ctx.Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx, g.url())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Subscribe(ctx, "private-support-conversation.7"))
}

func TestSubscribeRejected(t *testing.T) {
	var g *mockGateway
	g = newMockGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		f := g.read(ctx, conn)
		g.send(ctx, conn, frame{Event: eventSubscribeError, Channel: f.Channel})
		<-ctx.Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx, g.url())
	require.NoError(t, err)
	defer c.Close()

	err = c.Subscribe(ctx, "private-user.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestUnsubscribeBlocksUntilRemoved(t *testing.T) {
	var g *mockGateway
	g = newMockGateway(t, nil)
	g.handle = echoSubscriptions(g)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx, g.url())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Subscribe(ctx, "private-support-conversation.7"))
	require.NoError(t, c.Unsubscribe(ctx, "private-support-conversation.7"))
	require.NoError(t, c.Subscribe(ctx, "private-support-conversation.7"))
}

func TestEventsDeliveredWithChannelAndName(t *testing.T) {
	var g *mockGateway
	g = newMockGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		g.send(ctx, conn, frame{
			Event:   "message.sent",
			Channel: "private-support-conversation.7",
			Data:    json.RawMessage(`{"id":12,"content":"hi"}`),
		})
		<-ctx.Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx, g.url())
	require.NoError(t, err)
	defer c.Close()

	select {
	case ev := <-c.Events():
		require.NoError(t, ev.Err)
		assert.Equal(t, "message.sent", ev.Name)
		assert.Equal(t, "private-support-conversation.7", ev.Channel)
		assert.JSONEq(t, `{"id":12,"content":"hi"}`, string(ev.Data))
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

func TestPingFramesAreSwallowed(t *testing.T) {
	var g *mockGateway
	g = newMockGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		g.send(ctx, conn, frame{Event: eventPing})
		g.send(ctx, conn, frame{Event: eventPing})
		g.send(ctx, conn, frame{Event: "message.sent", Channel: "c", Data: json.RawMessage(`{}`)})
		<-ctx.Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx, g.url())
	require.NoError(t, err)
	defer c.Close()

	ev := <-c.Events()
	require.NoError(t, ev.Err)
	assert.Equal(t, "message.sent", ev.Name)
}

func TestWhisperWritesClientFrame(t *testing.T) {
	got := make(chan frame, 1)
	var g *mockGateway
	g = newMockGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		got <- g.read(ctx, conn)
		<-ctx.Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx, g.url())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Whisper(ctx, "private-support-conversation.7", "client-typing", map[string]int{"userId": 42}))

	select {
	case f := <-got:
		assert.Equal(t, "client-typing", f.Event)
		assert.Equal(t, "private-support-conversation.7", f.Channel)
		assert.JSONEq(t, `{"userId":42}`, string(f.Data))
	case <-ctx.Done():
		t.Fatal("server never saw the whisper")
	}
}

func TestConnectionDropFailsPendingWaiters(t *testing.T) {
	g := newMockGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		// Read the subscribe, then drop the connection without confirming.
		_, _, _ = conn.Read(ctx)
		conn.CloseNow()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx, g.url())
	require.NoError(t, err)

	err = c.Subscribe(ctx, "private-user.1")
	require.ErrorIs(t, err, ErrClosed)

	// The events channel carries the terminal error and then closes.
	ev, ok := <-c.Events()
	require.True(t, ok)
	assert.Error(t, ev.Err)
	_, ok = <-c.Events()
	assert.False(t, ok)

	assert.ErrorIs(t, c.Subscribe(ctx, "private-user.1"), ErrClosed)
}

func TestPingTimeoutClosesConnection(t *testing.T) {
	g := newMockGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		<-ctx.Done() // silent server: no frames after the handshake
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := ConnectWithTimeout(ctx, g.url(), 50*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	select {
	case ev := <-c.Events():
		require.ErrorIs(t, ev.Err, ErrPingTimeout)
	case <-ctx.Done():
		t.Fatal("ping timeout never fired")
	}
}

func TestMalformedFramesAreSkipped(t *testing.T) {
	var g *mockGateway
	g = newMockGateway(t, func(ctx context.Context, conn *websocket.Conn) {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
		g.send(ctx, conn, frame{Event: "message.sent", Channel: "c", Data: json.RawMessage(`{}`)})
		<-ctx.Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx, g.url())
	require.NoError(t, err)
	defer c.Close()

	ev := <-c.Events()
	require.NoError(t, ev.Err)
	assert.Equal(t, "message.sent", ev.Name)
}
