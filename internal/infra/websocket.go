package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4096
	wsSendBuffer     = 64

	// PresenceRoom holds every live connection.
	PresenceRoom = "presence"
)

// WSHub manages WebSocket connections and room-based message delivery.
// Every connection joins the presence room and its player room.
type WSHub struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]*WSConn // room -> connID -> conn
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// WSConn is one client connection. Send is closed exactly once, on unregister.
type WSConn struct {
	ID       string
	PlayerID string
	Send     chan []byte
	closed   bool
}

// WSMessage is the payload sent over WebSocket in both directions.
type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSInbound handles an event a client sent. It returns the reply to push back, or nil.
type WSInbound func(ctx context.Context, event string, data json.RawMessage) *WSMessage

// NewWSHub creates a new WebSocket hub. allowedOrigin "*" accepts any origin.
func NewWSHub(allowedOrigin string, logger *slog.Logger) *WSHub {
	return &WSHub{
		rooms: make(map[string]map[string]*WSConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
		logger: logger,
	}
}

// PlayerRoom names the room scoped to one player.
func PlayerRoom(playerID string) string {
	return "player:" + playerID
}

// Join adds a connection to a room.
func (h *WSHub) Join(room string, conn *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*WSConn)
	}
	h.rooms[room][conn.ID] = conn
}

func (h *WSHub) leaveLocked(room, connID string) {
	if conns, ok := h.rooms[room]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Register joins conn to the presence room and its player room.
func (h *WSHub) Register(conn *WSConn) {
	h.Join(PresenceRoom, conn)
	h.Join(PlayerRoom(conn.PlayerID), conn)
}

// Unregister removes conn from every room and closes its send channel.
func (h *WSHub) Unregister(conn *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(PresenceRoom, conn.ID)
	h.leaveLocked(PlayerRoom(conn.PlayerID), conn.ID)
	if !conn.closed {
		conn.closed = true
		close(conn.Send)
	}
}

// Publish sends a message to all connections in a room. Slow connections drop the message.
func (h *WSHub) Publish(room string, event string, data interface{}) {
	payload, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		h.logger.Error("ws marshal error", "error", err, "room", room, "event", event)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.rooms[room] {
		if conn.closed {
			continue
		}
		select {
		case conn.Send <- payload:
		default:
			h.logger.Warn("ws send buffer full", "conn_id", conn.ID, "room", room)
		}
	}
}

// PublishToPlayer publishes to a player-scoped room.
func (h *WSHub) PublishToPlayer(playerID string, event string, data interface{}) {
	h.Publish(PlayerRoom(playerID), event, data)
}

// Broadcast publishes to every live connection.
func (h *WSHub) Broadcast(event string, data interface{}) {
	h.Publish(PresenceRoom, event, data)
}

// IsOnline reports whether the player has at least one live connection.
func (h *WSHub) IsOnline(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[PlayerRoom(playerID)]) > 0
}

// ConnectionCount returns the number of live connections.
func (h *WSHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[PresenceRoom])
}

// RoomCount returns the number of active rooms.
func (h *WSHub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Shutdown closes all connections. Write pumps send a close frame and exit.
func (h *WSHub) Shutdown(_ context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, conns := range h.rooms {
		for _, conn := range conns {
			if !conn.closed {
				conn.closed = true
				close(conn.Send)
			}
		}
		delete(h.rooms, room)
	}
}

// ServeWS upgrades the request and serves playerID until the client disconnects.
// hello, when non-nil, is the first message the client receives.
func (h *WSHub) ServeWS(w http.ResponseWriter, r *http.Request, playerID string, hello *WSMessage, inbound WSInbound) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	conn := &WSConn{ID: uuid.New().String(), PlayerID: playerID, Send: make(chan []byte, wsSendBuffer)}
	if hello != nil {
		if payload, err := json.Marshal(hello); err == nil {
			conn.Send <- payload
		}
	}
	h.Register(conn)
	h.logger.Info("ws connected", "conn_id", conn.ID, "player_id", playerID)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	go h.writePump(ws, conn)
	h.readPump(ctx, ws, conn, inbound)
	cancel()

	h.Unregister(conn)
	h.logger.Info("ws disconnected", "conn_id", conn.ID, "player_id", playerID)
	return nil
}

func (h *WSHub) readPump(ctx context.Context, ws *websocket.Conn, conn *WSConn, inbound WSInbound) {
	ws.SetReadLimit(wsMaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("ws read error", "conn_id", conn.ID, "error", err)
			}
			return
		}
		if inbound == nil {
			continue
		}
		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			continue
		}
		reply := inbound(ctx, msg.Event, msg.Data)
		if reply == nil {
			continue
		}
		payload, err := json.Marshal(reply)
		if err != nil {
			continue
		}
		h.mu.RLock()
		if !conn.closed {
			select {
			case conn.Send <- payload:
			default:
			}
		}
		h.mu.RUnlock()
	}
}

func (h *WSHub) writePump(ws *websocket.Conn, conn *WSConn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case payload, ok := <-conn.Send:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
