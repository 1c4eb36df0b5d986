package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/devroom/devroom/internal/collab"
	"github.com/devroom/devroom/internal/hub"
)

// socketHandler routes hub traffic into the collaboration engine.
type socketHandler struct {
	engine *collab.Engine
}

func (h socketHandler) HandleEvent(ctx context.Context, c *hub.Client, event string, data json.RawMessage) {
	h.engine.Handle(ctx, c, event, data)
}

func (h socketHandler) Disconnect(ctx context.Context, c *hub.Client) {
	h.engine.Disconnect(ctx, c)
}

// checkOrigin admits non-browser clients and the configured frontends.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.originAllowed(origin)
}

// handleWS handles GET /ws, upgrading to a realtime socket. An optional
// token query parameter binds the socket to an account.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var user *AuthUser
	if token := r.URL.Query().Get("token"); token != "" {
		u, err := s.authenticate(token)
		if err != nil || u == nil {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired token")
			return
		}
		user = u
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		logFor(r.Context()).Warn("websocket upgrade", "err", err)
		return
	}

	c := s.hub.Register(conn)
	if user != nil {
		c.SetEmail(user.Email)
	}
	s.metrics.RecordSocketOpened()
	c.Logger().Debug("socket connected", "authenticated", user != nil)

	s.sockets.Add(1)
	defer s.sockets.Done()
	c.Run(r.Context(), socketHandler{engine: s.engine})
}
