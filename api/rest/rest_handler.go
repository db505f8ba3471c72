package rest

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/inkroom/inkroom/canvas"
	"github.com/inkroom/inkroom/engine"
	"github.com/inkroom/inkroom/presence"
	"github.com/inkroom/inkroom/session"
)

type Handler struct {
	Auth    *session.Authenticator
	Replica *engine.Session
}

func NewHandler(auth *session.Authenticator, replica *engine.Session) *Handler {
	return &Handler{Auth: auth, Replica: replica}
}

type loginRequest struct {
	Provider    string `json:"provider"`
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}

type loginResponse struct {
	Id          string `json:"id"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
	Token       string `json:"token"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var (
		identity session.Identity
		token    string
		err      error
	)
	if req.Provider == "" || req.Provider == "guest" {
		identity, token, err = h.Auth.GuestLogin(req.DisplayName)
	} else {
		identity, token, err = h.Auth.Login(r.Context(), req.Provider, req.Code)
	}
	if err != nil {
		log.Printf("Login failed: %v", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	resp := loginResponse{
		Id:          identity.UserId,
		DisplayName: identity.DisplayName,
		Color:       identity.Color,
		Token:       token,
	}
	h.sendResponse(w, resp)
}

type snapshotResponse struct {
	Document     canvas.Document        `json:"document"`
	Participants []presence.Participant `json:"participants"`
	Cursors      []presence.Cursor      `json:"cursors"`
}

// HandleRoomSnapshot serves the current room state to authenticated callers.
// Useful for thumbnailing and for clients that want the document without
// holding a socket open.
func (h *Handler) HandleRoomSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := h.getTokenFromAuthHeader(r)
	if _, err := h.Auth.AuthenticateToken(token); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	frame := h.Replica.Snapshot()
	resp := snapshotResponse{
		Document:     frame.Document,
		Participants: frame.Participants,
		Cursors:      frame.Cursors,
	}
	h.sendResponse(w, resp)
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}
