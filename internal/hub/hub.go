// Package hub is the WebSocket pub/sub transport: connected clients, named
// rooms and JSON event frames.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler receives decoded frames and the disconnect notification for a client.
type Handler interface {
	HandleEvent(ctx context.Context, c *Client, event string, data json.RawMessage)
	Disconnect(ctx context.Context, c *Client)
}

// Options tunes connection keep-alive and buffering.
type Options struct {
	SendBuffer     int           // queued frames per client before it is dropped
	WriteWait      time.Duration // deadline for a single write
	PongWait       time.Duration // read deadline, extended by each pong
	PingPeriod     time.Duration // must be shorter than PongWait
	MaxMessageSize int64
}

// DefaultOptions returns the options used when a zero Options is passed.
func DefaultOptions() Options {
	return Options{
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	return o
}

// Hub tracks connected clients and their room memberships.
type Hub struct {
	opts Options
	log  *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

// New creates an empty hub. A nil logger uses slog.Default().
func New(logger *slog.Logger, opts Options) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		opts:    opts.withDefaults(),
		log:     logger,
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register wraps an upgraded connection in a new client with a random id.
// The client does nothing until Run is called.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	c := &Client{
		id:    uuid.NewString(),
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, h.opts.SendBuffer),
		done:  make(chan struct{}),
		rooms: make(map[string]struct{}),
	}
	c.log = h.log.With("sid", c.id)

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.id)
	for room := range c.rooms {
		h.removeLocked(room, c.id)
	}
	c.rooms = map[string]struct{}{}
}

func (h *Hub) removeLocked(room, id string) {
	members := h.rooms[room]
	if members == nil {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Client returns the connected client with the given id, or nil.
func (h *Hub) Client(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

// Join adds a connected client to a room. Unknown ids are ignored.
func (h *Hub) Join(id, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.clients[id]
	if c == nil {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[id] = c
	c.rooms[room] = struct{}{}
}

// Leave removes a client from a room.
func (h *Hub) Leave(id, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c := h.clients[id]; c != nil {
		delete(c.rooms, room)
	}
	h.removeLocked(room, id)
}

// EmitRoom sends an event to every member of a room.
func (h *Hub) EmitRoom(room, event string, data any) {
	h.EmitRoomExcept(room, "", event, data)
}

// EmitRoomExcept sends an event to every member of a room except exceptID.
func (h *Hub) EmitRoomExcept(room, exceptID, event string, data any) {
	msg, err := Encode(event, data)
	if err != nil {
		h.log.Error("encode room event", "room", room, "event", event, "err", err)
		return
	}
	for _, c := range h.members(room) {
		if c.id == exceptID {
			continue
		}
		c.enqueue(msg)
	}
}

func (h *Hub) members(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		out = append(out, c)
	}
	return out
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of clients in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// CloseAll closes every connected client. Their Run calls return after the
// handler's Disconnect has been called.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.Close()
	}
}
