// Package api is the REST surface: auth, channel administration and message
// history. Request/response wrappers over the store — the only realtime
// side effect is the kick signal raised into the chat hub.
package api

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/manziro785/online-chat-back/internal/auth"
	"github.com/manziro785/online-chat-back/internal/server/middleware"
	"github.com/manziro785/online-chat-back/internal/store"
)

// Kicker propagates a REST-side membership revocation to live connections.
// Implemented by *chat.Hub.
type Kicker interface {
	KickUser(channelID, kickedUserID string)
}

type Handlers struct {
	logger   *slog.Logger
	store    *store.Store
	verifier *auth.Verifier
	hub      Kicker
}

// Mount registers all REST routes on the mux. authed wraps a handler in the
// metadata/logging/auth middleware chain; open omits auth.
func Mount(mux *http.ServeMux, logger *slog.Logger, st *store.Store, verifier *auth.Verifier, hub Kicker, authed, open func(http.Handler) http.Handler) {
	h := &Handlers{
		logger:   logger.With(slog.String("component", "rest_api")),
		store:    st,
		verifier: verifier,
		hub:      hub,
	}

	mux.Handle("GET /health", open(http.HandlerFunc(h.health)))
	mux.Handle("POST /api/auth/register", open(http.HandlerFunc(h.register)))
	mux.Handle("POST /api/auth/login", open(http.HandlerFunc(h.login)))
	mux.Handle("GET /api/auth/me", authed(http.HandlerFunc(h.currentUser)))

	mux.Handle("GET /api/users/search", authed(http.HandlerFunc(h.searchUsers)))
	mux.Handle("PATCH /api/users/me", authed(http.HandlerFunc(h.updateProfile)))
	mux.Handle("GET /api/users/{id}", authed(http.HandlerFunc(h.getUser)))

	mux.Handle("POST /api/channels", authed(http.HandlerFunc(h.createChannel)))
	mux.Handle("POST /api/channels/join", authed(http.HandlerFunc(h.joinChannel)))
	mux.Handle("GET /api/channels", authed(http.HandlerFunc(h.myChannels)))
	mux.Handle("GET /api/channels/{id}", authed(http.HandlerFunc(h.getChannel)))
	mux.Handle("PATCH /api/channels/{id}", authed(http.HandlerFunc(h.updateChannel)))
	mux.Handle("DELETE /api/channels/{id}", authed(http.HandlerFunc(h.deleteChannel)))
	mux.Handle("GET /api/channels/{id}/members", authed(http.HandlerFunc(h.channelMembers)))
	mux.Handle("POST /api/channels/{id}/members", authed(http.HandlerFunc(h.addMember)))
	mux.Handle("DELETE /api/channels/{id}/members/{userId}", authed(http.HandlerFunc(h.kickMember)))
	mux.Handle("GET /api/channels/{id}/messages", authed(http.HandlerFunc(h.channelMessages)))

	mux.Handle("GET /api/direct/conversations", authed(http.HandlerFunc(h.conversations)))
	mux.Handle("GET /api/direct/{userId}/messages", authed(http.HandlerFunc(h.directMessages)))
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"message":   "Chat API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// requester returns the authenticated user attached by the auth middleware.
func requester(r *http.Request) (*store.User, bool) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok || reqMeta.User == nil {
		return nil, false
	}
	return reqMeta.User, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// userResponse strips sensitive fields from a user record.
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	LastSeen  time.Time `json:"lastSeen"`
}

func formatUser(u *store.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Nickname:  u.Nickname,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
		LastSeen:  u.LastSeen,
	}
}

const adminCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateAdminCode produces a channel invite code in the form #ABC123.
func generateAdminCode() string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = adminCodeChars[rand.Intn(len(adminCodeChars))]
	}
	return "#" + string(code)
}

// pagination reads page/limit query params with the history defaults.
func pagination(r *http.Request) (limit, offset int) {
	page := queryInt(r, "page", 1)
	limit = queryInt(r, "limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return limit, (page - 1) * limit
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
