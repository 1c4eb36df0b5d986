// Package collab implements the room protocol: presence, last-write-wins
// code broadcast, typing and language relays, and shared code execution.
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/devroom/devroom/internal/piston"
	"github.com/devroom/devroom/internal/serverdb"
	"github.com/devroom/devroom/internal/webhook"
)

// Store is the persistence the engine needs.
type Store interface {
	JoinRoom(roomID string, user serverdb.ActiveUser) (*serverdb.Room, bool, error)
	LeaveRoom(roomID, socketID string) (*serverdb.Room, error)
	UpdateRoomCode(roomID, code string) error
	UpdateRoomLanguage(roomID, language string) error
	GetUserByEmail(email string) (*serverdb.User, error)
	AddUserRoom(userID, roomID string) error
}

// Broadcaster is the room-addressed side of the transport.
type Broadcaster interface {
	Join(id, room string)
	Leave(id, room string)
	EmitRoom(room, event string, data any)
	EmitRoomExcept(room, exceptID, event string, data any)
}

// Conn is one connected socket.
type Conn interface {
	ID() string
	Email() string
	Session() (roomID, userName string)
	SetSession(roomID, userName string)
	ClearSession()
	Emit(event string, data any) error
}

// Executor runs code remotely.
type Executor interface {
	Execute(ctx context.Context, req piston.Request) (*piston.Response, error)
}

// Limiter is a keyed rate limiter.
type Limiter interface {
	Allow(key string, limit int) bool
}

// Notifier receives room lifecycle events.
type Notifier interface {
	Notify(event string, data any)
}

// Recorder counts protocol activity.
type Recorder interface {
	RecordSocketEvent()
	RecordExecution(failed bool)
}

// Config wires an Engine. Store, Broadcaster and Executor are required.
type Config struct {
	Store       Store
	Broadcaster Broadcaster
	Executor    Executor
	Limiter     Limiter
	ExecLimit   int // compileCode per socket per minute; 0 disables the limit
	Notifier    Notifier
	Recorder    Recorder
	Logger      *slog.Logger
}

// Engine handles socket events.
type Engine struct {
	store     Store
	bc        Broadcaster
	exec      Executor
	limiter   Limiter
	execLimit int
	notifier  Notifier
	recorder  Recorder
	log       *slog.Logger

	wg sync.WaitGroup
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:     cfg.Store,
		bc:        cfg.Broadcaster,
		exec:      cfg.Executor,
		limiter:   cfg.Limiter,
		execLimit: cfg.ExecLimit,
		notifier:  cfg.Notifier,
		recorder:  cfg.Recorder,
		log:       cfg.Logger,
	}
}

// Wait blocks until in-flight executions have delivered their results.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Handle dispatches one inbound event. Unknown events and malformed
// payloads are dropped.
func (e *Engine) Handle(ctx context.Context, c Conn, event string, data json.RawMessage) {
	if e.recorder != nil {
		e.recorder.RecordSocketEvent()
	}
	log := e.log.With("sid", c.ID(), "event", event)

	var err error
	switch event {
	case EventJoin:
		var p JoinPayload
		if err = decode(data, &p); err == nil {
			e.join(c, p, log)
		}
	case EventCodeChange:
		var p CodeChangePayload
		if err = decode(data, &p); err == nil {
			e.codeChange(c, p, log)
		}
	case EventLeaveRoom:
		e.leaveRoom(c, log)
	case EventTyping:
		var p TypingPayload
		if err = decode(data, &p); err == nil {
			e.typing(c, p)
		}
	case EventLanguageChange:
		var p LanguagePayload
		if err = decode(data, &p); err == nil {
			e.languageChange(c, p, log)
		}
	case EventCompileCode:
		var p CompilePayload
		if err = decode(data, &p); err == nil {
			e.compileCode(ctx, c, p, log)
		}
	default:
		log.Debug("unknown event")
		return
	}
	if err != nil {
		log.Debug("bad payload", "err", err)
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(data, v)
}

// Disconnect removes the socket's presence and tells the room.
func (e *Engine) Disconnect(_ context.Context, c Conn) {
	roomID, _ := c.Session()
	if roomID == "" {
		return
	}
	e.removePresence(c, roomID, e.log.With("sid", c.ID(), "room", roomID))
	c.ClearSession()
}

func (e *Engine) join(c Conn, p JoinPayload, log *slog.Logger) {
	roomID := normalizeRoomID(p.RoomID)
	userName := strings.TrimSpace(p.UserName)
	if roomID == "" || userName == "" {
		return
	}
	log = log.With("room", roomID)

	email := c.Email()
	if email == "" {
		email = serverdb.NormalizeEmail(p.Email)
	}

	if prev, _ := c.Session(); prev != "" && prev != roomID {
		e.removePresence(c, prev, log)
		c.ClearSession()
	}

	room, created, err := e.store.JoinRoom(roomID, serverdb.ActiveUser{
		Name:     userName,
		Email:    email,
		SocketID: c.ID(),
	})
	if errors.Is(err, serverdb.ErrRoomFull) {
		c.Emit(EventRoomFull, RoomFullPayload{RoomID: roomID})
		log.Info("room full")
		return
	}
	if err != nil {
		log.Error("join room", "err", err)
		return
	}

	e.bc.Join(c.ID(), roomID)
	c.SetSession(roomID, userName)

	e.bc.EmitRoom(roomID, EventUserJoined, room.Names())

	code := room.Code
	if code == "" {
		code = serverdb.DefaultCode
	}
	c.Emit(EventCodeUpdate, code)
	if room.Language != "" {
		c.Emit(EventLanguageUpdate, room.Language)
	}

	if email != "" {
		e.rememberRoom(email, roomID, log)
	}
	if created && e.notifier != nil {
		e.notifier.Notify(webhook.EventRoomCreated, map[string]string{
			"roomId":    room.RoomID,
			"name":      room.Name,
			"createdBy": room.CreatedBy,
		})
	}
	log.Info("joined", "users", len(room.ActiveUsers), "created", created)
}

func (e *Engine) rememberRoom(email, roomID string, log *slog.Logger) {
	user, err := e.store.GetUserByEmail(email)
	if err != nil {
		log.Error("lookup user", "err", err)
		return
	}
	if user == nil {
		return
	}
	if err := e.store.AddUserRoom(user.ID, roomID); err != nil {
		log.Error("remember room", "err", err)
	}
}

func (e *Engine) removePresence(c Conn, roomID string, log *slog.Logger) {
	room, err := e.store.LeaveRoom(roomID, c.ID())
	if err != nil {
		log.Error("leave room", "err", err)
	}
	e.bc.Leave(c.ID(), roomID)
	if room != nil {
		e.bc.EmitRoom(roomID, EventUserJoined, room.Names())
	}
}

// normalizeRoomID is applied to every inbound room id, so a padded id
// addresses the same room in join and in later events.
func normalizeRoomID(id string) string {
	return strings.TrimSpace(id)
}

// inRoom reports whether c has joined roomID.
func inRoom(c Conn, roomID string) bool {
	current, _ := c.Session()
	return current != "" && current == roomID
}

func (e *Engine) codeChange(c Conn, p CodeChangePayload, log *slog.Logger) {
	p.RoomID = normalizeRoomID(p.RoomID)
	if !inRoom(c, p.RoomID) {
		return
	}
	if err := e.store.UpdateRoomCode(p.RoomID, p.Code); err != nil {
		log.Error("save code", "room", p.RoomID, "err", err)
	}
	e.bc.EmitRoomExcept(p.RoomID, c.ID(), EventCodeUpdate, p.Code)
}

func (e *Engine) leaveRoom(c Conn, log *slog.Logger) {
	roomID, _ := c.Session()
	if roomID == "" {
		return
	}
	e.removePresence(c, roomID, log.With("room", roomID))
	c.ClearSession()
	c.Emit(EventLeftRoom, nil)
}

func (e *Engine) typing(c Conn, p TypingPayload) {
	p.RoomID = normalizeRoomID(p.RoomID)
	if !inRoom(c, p.RoomID) {
		return
	}
	name := p.UserName
	if name == "" {
		_, name = c.Session()
	}
	e.bc.EmitRoomExcept(p.RoomID, c.ID(), EventUserTyping, name)
}

func (e *Engine) languageChange(c Conn, p LanguagePayload, log *slog.Logger) {
	p.RoomID = normalizeRoomID(p.RoomID)
	if !inRoom(c, p.RoomID) || p.Language == "" {
		return
	}
	if err := e.store.UpdateRoomLanguage(p.RoomID, p.Language); err != nil {
		log.Error("save language", "room", p.RoomID, "err", err)
	}
	e.bc.EmitRoom(p.RoomID, EventLanguageUpdate, p.Language)
}

func (e *Engine) compileCode(ctx context.Context, c Conn, p CompilePayload, log *slog.Logger) {
	p.RoomID = normalizeRoomID(p.RoomID)
	if !inRoom(c, p.RoomID) {
		return
	}
	if e.limiter != nil && e.execLimit > 0 && !e.limiter.Allow("exec:"+c.ID(), e.execLimit) {
		c.Emit(EventCodeResponse, newErrorResponse("rate limit exceeded"))
		return
	}

	// The result goes to the whole room even if the requester disconnects.
	ctx = context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		resp, err := e.exec.Execute(ctx, piston.Request{
			Language: p.Language,
			Version:  p.Version,
			Code:     p.Code,
			Stdin:    p.Input,
		})
		if e.recorder != nil {
			e.recorder.RecordExecution(err != nil)
		}
		if err != nil {
			log.Warn("execute", "room", p.RoomID, "language", p.Language, "err", err)
			e.bc.EmitRoom(p.RoomID, EventCodeResponse, newErrorResponse(err.Error()))
			return
		}
		e.bc.EmitRoom(p.RoomID, EventCodeResponse, resp)

		if e.notifier != nil {
			data := map[string]any{
				"roomId":   p.RoomID,
				"language": resp.Language,
				"version":  resp.Version,
			}
			if resp.Run.Code != nil {
				data["exitCode"] = *resp.Run.Code
			}
			e.notifier.Notify(webhook.EventCodeExecuted, data)
		}
	}()
}
