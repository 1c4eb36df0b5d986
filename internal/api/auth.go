package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/devroom/devroom/internal/auth"
	"github.com/devroom/devroom/internal/serverdb"
)

// signupRequest is the JSON body for POST /api/auth/signup.
type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest is the JSON body for POST /api/auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the JSON response for POST /api/auth/login.
type loginResponse struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// handleSignup handles POST /api/auth/signup.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Name, email and password required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "valid email is required")
		return
	}

	existing, err := s.store.GetUserByEmail(req.Email)
	if err != nil {
		logFor(r.Context()).Error("signup: lookup user", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Signup failed")
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, ErrCodeUserExists, "User already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logFor(r.Context()).Error("signup: hash password", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Signup failed")
		return
	}

	if _, err := s.store.CreateUser(req.Name, req.Email, hash); err != nil {
		// Lost a race with a concurrent signup for the same address.
		if errors.Is(err, serverdb.ErrUserExists) {
			writeError(w, http.StatusBadRequest, ErrCodeUserExists, "User already exists")
			return
		}
		logFor(r.Context()).Error("signup: create user", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Signup failed")
		return
	}

	s.logAuthEvent(r, req.Email, serverdb.AuthEventSignup)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Signup successful"})
}

// handleLogin handles POST /api/auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.store.GetUserByEmail(strings.TrimSpace(req.Email))
	if err != nil {
		logFor(r.Context()).Error("login: lookup user", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Login failed")
		return
	}
	if user == nil {
		s.logAuthEvent(r, req.Email, serverdb.AuthEventLoginFailed)
		writeError(w, http.StatusBadRequest, ErrCodeNotFound, "User not found")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrWrongPassword) {
			s.logAuthEvent(r, user.Email, serverdb.AuthEventLoginFailed)
			writeError(w, http.StatusBadRequest, ErrCodeWrongPass, "Wrong password")
			return
		}
		logFor(r.Context()).Error("login: check password", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Login failed")
		return
	}

	token, err := s.tokens.Issue(user.ID, user.Name, user.Email)
	if err != nil {
		logFor(r.Context()).Error("login: issue token", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Login failed")
		return
	}

	s.logAuthEvent(r, user.Email, serverdb.AuthEventLogin)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Name: user.Name, Email: user.Email})
}

// logAuthEvent records an auth event with the caller's address and agent.
// Failures are logged and otherwise ignored.
func (s *Server) logAuthEvent(r *http.Request, email, eventType string) {
	meta, _ := json.Marshal(map[string]string{
		"ip":         clientIP(r),
		"user_agent": r.UserAgent(),
	})
	if err := s.store.InsertAuthEvent(email, eventType, string(meta)); err != nil {
		logFor(r.Context()).Warn("log auth event", "type", eventType, "err", err)
	}
}
