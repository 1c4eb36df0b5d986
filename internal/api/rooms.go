package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/devroom/devroom/internal/serverdb"
	"github.com/devroom/devroom/internal/webhook"
)

// roomUser is the JSON shape of one active socket in a room.
type roomUser struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	SocketID string `json:"socketId"`
}

// roomResponse is the JSON shape of a room.
type roomResponse struct {
	RoomID      string     `json:"roomId"`
	Name        string     `json:"name"`
	Code        string     `json:"code"`
	Language    string     `json:"language"`
	MaxUsers    int        `json:"maxUsers"`
	CreatedBy   string     `json:"createdBy,omitempty"`
	ActiveUsers []roomUser `json:"activeUsers"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func toRoomResponse(r *serverdb.Room) *roomResponse {
	if r == nil {
		return nil
	}
	users := make([]roomUser, 0, len(r.ActiveUsers))
	for _, u := range r.ActiveUsers {
		users = append(users, roomUser{Name: u.Name, Email: u.Email, SocketID: u.SocketID})
	}
	return &roomResponse{
		RoomID:      r.RoomID,
		Name:        r.Name,
		Code:        r.Code,
		Language:    r.Language,
		MaxUsers:    r.MaxUsers,
		CreatedBy:   r.CreatedBy,
		ActiveUsers: users,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toRoomResponses(rooms []*serverdb.Room) []*roomResponse {
	out := make([]*roomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, toRoomResponse(r))
	}
	return out
}

// callerEmail prefers the authenticated account over a client supplied address.
func callerEmail(r *http.Request, supplied string) string {
	if u := getUserFromContext(r.Context()); u != nil {
		return u.Email
	}
	return strings.TrimSpace(supplied)
}

// handleListRooms handles GET /api/rooms?email=.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	email := callerEmail(r, r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Email required")
		return
	}

	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		logFor(r.Context()).Error("list rooms: lookup user", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to fetch rooms")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "User not found")
		return
	}

	rooms, err := s.store.ListRoomsForUser(user.ID)
	if err != nil {
		logFor(r.Context()).Error("list rooms", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to fetch rooms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": toRoomResponses(rooms)})
}

type joinRoomRequest struct {
	Email  string `json:"email"`
	RoomID string `json:"roomId"`
}

// handleJoinRoom handles POST /api/rooms/join. It only remembers the room
// for the account; presence is tracked by the socket.
func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := callerEmail(r, req.Email)
	roomID := strings.TrimSpace(req.RoomID)
	if email == "" || roomID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Email and roomId required")
		return
	}

	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		logFor(r.Context()).Error("join room: lookup user", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to add room")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "User not found")
		return
	}

	if err := s.store.AddUserRoom(user.ID, roomID); err != nil {
		logFor(r.Context()).Error("join room", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to add room")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Room added"})
}

// handleCheckRoom handles GET /api/rooms/check?roomId=.
func (s *Server) handleCheckRoom(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimSpace(r.URL.Query().Get("roomId"))
	if roomID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Room ID required")
		return
	}

	room, err := s.store.GetRoom(roomID)
	if err != nil {
		logFor(r.Context()).Error("check room", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to check room")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"exists": room != nil,
		"room":   toRoomResponse(room),
	})
}

type createRoomRequest struct {
	RoomID    string `json:"roomId"`
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy"`
}

// handleCreateRoom handles POST /api/rooms/create.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	roomID := strings.TrimSpace(req.RoomID)
	name := strings.TrimSpace(req.Name)
	if roomID == "" || name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Room ID and name required")
		return
	}
	createdBy := callerEmail(r, req.CreatedBy)

	room, err := s.store.CreateRoom(roomID, name, createdBy)
	if errors.Is(err, serverdb.ErrRoomExists) {
		writeError(w, http.StatusBadRequest, ErrCodeRoomExists, "Room ID already exists")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("create room", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to create room")
		return
	}

	if createdBy != "" {
		owner, err := s.store.GetUserByEmail(createdBy)
		if err != nil {
			logFor(r.Context()).Warn("create room: lookup owner", "err", err)
		} else if owner != nil {
			if err := s.store.AddUserRoom(owner.ID, room.RoomID); err != nil {
				logFor(r.Context()).Warn("create room: remember room", "err", err)
			}
		}
	}

	s.notifier.Notify(webhook.EventRoomCreated, map[string]string{
		"roomId":    room.RoomID,
		"name":      room.Name,
		"createdBy": room.CreatedBy,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Room created",
		"room":    toRoomResponse(room),
	})
}
