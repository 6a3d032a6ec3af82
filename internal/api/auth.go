package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/manziro785/online-chat-back/internal/store"
)

type registerRequest struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Nickname = strings.TrimSpace(req.Nickname)

	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid email format")
		return
	}
	if len(req.Nickname) < 3 || len(req.Nickname) > 50 {
		writeError(w, http.StatusBadRequest, "Nickname must be 3-50 characters")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	if _, err := h.store.FindUserByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	if _, err := h.store.FindUserByNickname(r.Context(), req.Nickname); err == nil {
		writeError(w, http.StatusConflict, "Nickname already taken")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.serverError(w, "hash password", err)
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.Email, req.Nickname, string(hash))
	if err != nil {
		h.serverError(w, "create user", err)
		return
	}

	token, err := h.verifier.IssueToken(user.ID)
	if err != nil {
		h.serverError(w, "issue token", err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: formatUser(user)})
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.store.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.serverError(w, "find user", err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.verifier.IssueToken(user.ID)
	if err != nil {
		h.serverError(w, "issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: formatUser(user)})
}

func (h *Handlers) currentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": formatUser(user)})
}

type updateProfileRequest struct {
	Nickname  *string `json:"nickname"`
	AvatarURL *string `json:"avatarUrl"`
}

// updateProfile applies a partial update to the requester's own profile.
func (h *Handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req updateProfileRequest
	if !readJSON(w, r, &req) {
		return
	}

	upd := store.UserUpdate{AvatarURL: req.AvatarURL}
	if req.Nickname != nil {
		nickname := strings.TrimSpace(*req.Nickname)
		if len(nickname) < 3 || len(nickname) > 50 {
			writeError(w, http.StatusBadRequest, "Nickname must be 3-50 characters")
			return
		}
		if other, err := h.store.FindUserByNickname(r.Context(), nickname); err == nil && other.ID != user.ID {
			writeError(w, http.StatusConflict, "Nickname already taken")
			return
		}
		upd.Nickname = &nickname
	}
	if upd.Nickname == nil && upd.AvatarURL == nil {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	updated, err := h.store.UpdateUser(r.Context(), user.ID, upd)
	if err != nil {
		h.serverError(w, "update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    formatUser(updated),
	})
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.ResolveUser(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.serverError(w, "resolve user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": formatUser(user)})
}

func (h *Handlers) searchUsers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "Search query required")
		return
	}

	users, err := h.store.SearchUsers(r.Context(), query, 20)
	if err != nil {
		h.serverError(w, "search users", err)
		return
	}

	results := make([]userResponse, 0, len(users))
	for i := range users {
		results = append(results, formatUser(&users[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": results})
}

func (h *Handlers) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("Request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
