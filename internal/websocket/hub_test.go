package websocket

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

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Shutdown()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	defer a.CloseNow()
	defer b.CloseNow()
	waitFor(t, func() bool { return hub.Count() == 2 })

	hub.Broadcast(Message{Type: TypeReload, Target: "index.html"})

	for _, conn := range []*websocket.Conn{a, b} {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		typ, data, err := conn.Read(ctx)
		cancel()
		require.NoError(t, err)
		assert.Equal(t, websocket.MessageText, typ)

		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, TypeReload, msg.Type)
		assert.Equal(t, "index.html", msg.Target)
		assert.False(t, msg.Timestamp.IsZero())
	}
}

func TestHubClientDisconnect(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Shutdown()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	waitFor(t, func() bool { return hub.Count() == 1 })

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	waitFor(t, func() bool { return hub.Count() == 0 })
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.CloseNow()
	waitFor(t, func() bool { return hub.Count() == 1 })

	hub.Shutdown()
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.NotPanics(t, func() { hub.Broadcast(Message{Type: TypeReload}) })
}

func TestServeHTTPRejectsPlainRequest(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Shutdown()

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)
	assert.Equal(t, 0, hub.Count())
}
