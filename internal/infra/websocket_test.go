package infra

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newConn(id, player string) *WSConn {
	return &WSConn{ID: id, PlayerID: player, Send: make(chan []byte, 4)}
}

func TestWSHub_PublishToPlayer(t *testing.T) {
	hub := NewWSHub("*", testLogger())
	a := newConn("c1", "p1")
	b := newConn("c2", "p2")
	hub.Register(a)
	hub.Register(b)

	hub.PublishToPlayer("p1", "state", map[string]int{"coins": 5})

	require.Len(t, a.Send, 1)
	assert.Empty(t, b.Send)

	var msg WSMessage
	require.NoError(t, json.Unmarshal(<-a.Send, &msg))
	assert.Equal(t, "state", msg.Event)
	assert.True(t, hub.IsOnline("p1"))
	assert.False(t, hub.IsOnline("p3"))
}

func TestWSHub_BroadcastAndCounts(t *testing.T) {
	hub := NewWSHub("*", testLogger())
	a := newConn("c1", "p1")
	b := newConn("c2", "p1")
	hub.Register(a)
	hub.Register(b)

	assert.Equal(t, 2, hub.ConnectionCount())
	assert.Equal(t, 2, hub.RoomCount()) // presence + player:p1

	hub.Broadcast("notification", "hi")
	assert.Len(t, a.Send, 1)
	assert.Len(t, b.Send, 1)

	hub.Unregister(a)
	assert.Equal(t, 1, hub.ConnectionCount())
	_, open := <-drain(a.Send)
	assert.False(t, open)

	// second unregister must not panic on a closed channel
	hub.Unregister(a)
}

func drain(ch chan []byte) chan []byte {
	for len(ch) > 0 {
		<-ch
	}
	return ch
}

func TestWSHub_FullBufferDropsMessage(t *testing.T) {
	hub := NewWSHub("*", testLogger())
	c := &WSConn{ID: "c1", PlayerID: "p1", Send: make(chan []byte, 1)}
	hub.Register(c)

	hub.PublishToPlayer("p1", "a", nil)
	hub.PublishToPlayer("p1", "b", nil)
	assert.Len(t, c.Send, 1)
}

func TestWSHub_ShutdownClosesAll(t *testing.T) {
	hub := NewWSHub("*", testLogger())
	c := newConn("c1", "p1")
	hub.Register(c)

	hub.Shutdown(context.Background())
	assert.Equal(t, 0, hub.RoomCount())
	_, open := <-c.Send
	assert.False(t, open)

	hub.Unregister(c)
}

func TestWSHub_ServeWS(t *testing.T) {
	hub := NewWSHub("*", testLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hello := &WSMessage{Event: "hello", Data: "p1"}
		_ = hub.ServeWS(w, r, "p1", hello, func(_ context.Context, event string, data json.RawMessage) *WSMessage {
			return &WSMessage{Event: event + "_ack", Data: data}
		})
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg WSMessage
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "hello", msg.Event)

	require.NoError(t, ws.WriteJSON(map[string]string{"event": "tap"}))
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "tap_ack", msg.Event)

	assert.Eventually(t, func() bool { return hub.IsOnline("p1") }, time.Second, 10*time.Millisecond)
	hub.PublishToPlayer("p1", "state", 7)
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "state", msg.Event)

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	assert.Eventually(t, func() bool { return !hub.IsOnline("p1") }, time.Second, 10*time.Millisecond)
}

func TestWSHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewWSHub("https://app.example", testLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, "p1", nil, nil)
	}))
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
