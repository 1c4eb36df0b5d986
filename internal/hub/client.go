package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned when emitting to a client that has gone away.
var ErrClosed = errors.New("client closed")

// Client is one WebSocket connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	log  *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// rooms is guarded by hub.mu.
	rooms map[string]struct{}

	mu       sync.Mutex
	email    string
	roomID   string
	userName string
}

// ID returns the client's socket id.
func (c *Client) ID() string { return c.id }

// Logger returns a logger tagged with the socket id.
func (c *Client) Logger() *slog.Logger { return c.log }

// Email returns the email bound at connect time, if any.
func (c *Client) Email() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.email
}

// SetEmail binds an authenticated email to the connection.
func (c *Client) SetEmail(email string) {
	c.mu.Lock()
	c.email = email
	c.mu.Unlock()
}

// Session returns the room and display name recorded by the last join.
func (c *Client) Session() (roomID, userName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.userName
}

// SetSession records the room the client is editing and its display name.
func (c *Client) SetSession(roomID, userName string) {
	c.mu.Lock()
	c.roomID, c.userName = roomID, userName
	c.mu.Unlock()
}

// ClearSession forgets the current room.
func (c *Client) ClearSession() {
	c.SetSession("", "")
}

// Emit queues an event for this client only.
func (c *Client) Emit(event string, data any) error {
	msg, err := Encode(event, data)
	if err != nil {
		return err
	}
	if !c.enqueue(msg) {
		return ErrClosed
	}
	return nil
}

// enqueue never blocks. A client whose queue is full is closed.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		c.log.Warn("send queue full, dropping client")
		c.Close()
		return false
	}
}

// Close stops the client's pumps. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Run pumps frames between the connection and h until the connection fails,
// ctx is cancelled or Close is called. It then unregisters the client and
// calls h.Disconnect exactly once before returning.
func (c *Client) Run(ctx context.Context, h Handler) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()
	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	c.readPump(ctx, h)

	c.Close()
	<-writerDone
	c.hub.unregister(c)
	h.Disconnect(context.WithoutCancel(ctx), c)
}

func (c *Client) readPump(ctx context.Context, h Handler) {
	opts := c.hub.opts
	c.conn.SetReadLimit(opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Debug("socket read", "err", err)
			}
			return
		}
		f, err := Decode(msg)
		if err != nil {
			c.log.Debug("drop frame", "err", err)
			continue
		}
		h.HandleEvent(ctx, c, f.Event, f.Data)
	}
}

func (c *Client) writePump() {
	opts := c.hub.opts
	ticker := time.NewTicker(opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("socket write", "err", err)
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(opts.WriteWait))
			return
		}
	}
}

// flush writes whatever is still queued, best effort.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
