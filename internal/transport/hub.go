package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/apostachess/server/internal/obslog"
	"github.com/apostachess/server/pkg/wire"
)

const writeTimeout = 5 * time.Second

// client is one connected participant. wsjson.Write is not safe for
// concurrent use, so every write serializes on writeMu.
type client struct {
	handle  string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(event string, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, wire.Frame{Event: event, Data: marshal(payload)})
}

// Hub tracks live connections and their room membership, implementing
// match.Channel. Delivery is best-effort: a failed write is logged and
// dropped, never retried, and never affects session state.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]struct{} // session code → handles
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]struct{}),
	}
}

func (h *Hub) add(handle string, conn *websocket.Conn) *client {
	cl := &client{handle: handle, conn: conn}
	h.mu.Lock()
	h.clients[handle] = cl
	h.mu.Unlock()
	return cl
}

// remove drops the connection and its room memberships.
func (h *Hub) remove(handle string) {
	h.mu.Lock()
	delete(h.clients, handle)
	for code, members := range h.rooms {
		delete(members, handle)
		if len(members) == 0 {
			delete(h.rooms, code)
		}
	}
	h.mu.Unlock()
}

// JoinRoom subscribes a participant to a session's broadcasts.
func (h *Hub) JoinRoom(code, handle string) {
	h.mu.Lock()
	members, ok := h.rooms[code]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[code] = members
	}
	members[handle] = struct{}{}
	h.mu.Unlock()
}

// CloseRoom drops a session's room with all its subscriptions. Called
// when the registry evicts the session.
func (h *Hub) CloseRoom(code string) {
	h.mu.Lock()
	delete(h.rooms, code)
	h.mu.Unlock()
}

// LeaveRoom unsubscribes a participant from a session's broadcasts.
func (h *Hub) LeaveRoom(code, handle string) {
	h.mu.Lock()
	if members, ok := h.rooms[code]; ok {
		delete(members, handle)
		if len(members) == 0 {
			delete(h.rooms, code)
		}
	}
	h.mu.Unlock()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendTo delivers point-to-point to one participant.
func (h *Hub) SendTo(handle, event string, payload any) {
	h.mu.RLock()
	cl := h.clients[handle]
	h.mu.RUnlock()
	if cl == nil {
		return
	}
	if err := cl.write(event, payload); err != nil {
		obslog.L().Warn("hub_send_error",
			zap.String("handle", handle),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// BroadcastRoom delivers to every subscriber of a session's room.
func (h *Hub) BroadcastRoom(code, event string, payload any) {
	h.mu.RLock()
	handles := make([]string, 0, 2)
	for handle := range h.rooms[code] {
		handles = append(handles, handle)
	}
	h.mu.RUnlock()
	for _, handle := range handles {
		h.SendTo(handle, event, payload)
	}
}

// BroadcastAll delivers to every connected client.
func (h *Hub) BroadcastAll(event string, payload any) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()
	for _, cl := range clients {
		if err := cl.write(event, payload); err != nil {
			obslog.L().Warn("hub_broadcast_error",
				zap.String("handle", cl.handle),
				zap.String("event", event),
				zap.Error(err),
			)
		}
	}
}

func marshal(payload any) json.RawMessage {
	if payload == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		obslog.L().Error("hub_marshal_error", zap.Error(err))
		return nil
	}
	return raw
}
