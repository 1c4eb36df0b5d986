package api

import (
	"net/http"
	"strconv"

	"github.com/devroom/devroom/internal/serverdb"
)

// adminStatsResponse combines stored counts with live process state.
type adminStatsResponse struct {
	*serverdb.Stats
	SocketsConnected int `json:"sockets_connected"`
}

// handleAdminStats handles GET /api/admin/stats.
func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.AdminStats()
	if err != nil {
		logFor(r.Context()).Error("admin stats", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, adminStatsResponse{Stats: stats, SocketsConnected: s.hub.Count()})
}

// handleAdminListRooms handles GET /api/admin/rooms.
func (s *Server) handleAdminListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.store.ListRooms()
	if err != nil {
		logFor(r.Context()).Error("admin list rooms", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list rooms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": toRoomResponses(rooms)})
}

// handleAdminDeleteRoom handles DELETE /api/admin/rooms/{roomId}.
func (s *Server) handleAdminDeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	room, err := s.store.GetRoom(roomID)
	if err != nil {
		logFor(r.Context()).Error("admin delete room: get", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to delete room")
		return
	}
	if room == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "room not found")
		return
	}
	if err := s.store.DeleteRoom(roomID); err != nil {
		logFor(r.Context()).Error("admin delete room", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to delete room")
		return
	}
	logFor(r.Context()).Info("room deleted", "room", roomID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleAdminAuthEvents handles GET /api/admin/auth-events?type=&limit=.
func (s *Server) handleAdminAuthEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := s.store.ListAuthEvents(q.Get("type"), queryLimit(r))
	if err != nil {
		logFor(r.Context()).Error("admin auth events", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to query auth events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": events})
}

// handleAdminRateLimitEvents handles GET /api/admin/rate-limit-events?limit=.
func (s *Server) handleAdminRateLimitEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListRateLimitEvents(queryLimit(r))
	if err != nil {
		logFor(r.Context()).Error("admin rate limit events", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to query rate limit events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": events})
}

// queryLimit parses the limit query parameter, clamped by the store.
func queryLimit(r *http.Request) int {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	return serverdb.NormalizeLimit(limit)
}
