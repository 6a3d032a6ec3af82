package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/manziro785/online-chat-back/internal/store"
)

type createChannelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatarUrl"`
}

type joinChannelRequest struct {
	AdminCode string `json:"adminCode"`
}

type channelResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AvatarURL   string    `json:"avatarUrl"`
	AdminCode   string    `json:"adminCode,omitempty"`
	CreatorID   string    `json:"creatorId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func formatChannel(c *store.Channel, includeCode bool) channelResponse {
	resp := channelResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		AvatarURL:   c.AvatarURL,
		CreatorID:   c.CreatorID,
		CreatedAt:   c.CreatedAt,
	}
	if includeCode {
		resp.AdminCode = c.AdminCode
	}
	return resp
}

func (h *Handlers) createChannel(w http.ResponseWriter, r *http.Request) {
	user, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createChannelRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 100 {
		writeError(w, http.StatusBadRequest, "Channel name must be 1-100 characters")
		return
	}

	// regenerate on the unlikely collision with an existing code; a store
	// failure aborts the request instead of retrying
	var adminCode string
	for attempt := 0; ; attempt++ {
		code := generateAdminCode()
		_, err := h.store.FindChannelByAdminCode(r.Context(), code)
		if errors.Is(err, store.ErrNotFound) {
			adminCode = code
			break
		}
		if err != nil {
			h.serverError(w, "generate admin code", err)
			return
		}
		if attempt >= 10 {
			h.serverError(w, "generate admin code", errors.New("no free admin code after 10 attempts"))
			return
		}
	}

	channel, err := h.store.CreateChannel(r.Context(), req.Name, strings.TrimSpace(req.Description), req.AvatarURL, adminCode, user.ID)
	if err != nil {
		h.serverError(w, "create channel", err)
		return
	}
	if err := h.store.AddMember(r.Context(), channel.ID, user.ID, store.RoleAdmin); err != nil {
		h.serverError(w, "add creator", err)
		return
	}

	// the creator sees the admin code
	writeJSON(w, http.StatusCreated, map[string]any{"channel": formatChannel(channel, true)})
}

func (h *Handlers) joinChannel(w http.ResponseWriter, r *http.Request) {
	user, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req joinChannelRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.AdminCode == "" {
		writeError(w, http.StatusBadRequest, "Admin code required")
		return
	}

	channel, err := h.store.FindChannelByAdminCode(r.Context(), strings.ToUpper(req.AdminCode))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Channel not found")
			return
		}
		h.serverError(w, "find channel", err)
		return
	}

	member, err := h.store.IsMember(r.Context(), channel.ID, user.ID)
	if err != nil {
		h.serverError(w, "check membership", err)
		return
	}
	if member {
		writeError(w, http.StatusConflict, "Already a member of this channel")
		return
	}

	if err := h.store.AddMember(r.Context(), channel.ID, user.ID, store.RoleMember); err != nil {
		h.serverError(w, "add member", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channel": formatChannel(channel, false)})
}

func (h *Handlers) myChannels(w http.ResponseWriter, r *http.Request) {
	user, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	channels, err := h.store.UserChannels(r.Context(), user.ID)
	if err != nil {
		h.serverError(w, "user channels", err)
		return
	}

	results := make([]channelResponse, 0, len(channels))
	for i := range channels {
		results = append(results, formatChannel(&channels[i], channels[i].CreatorID == user.ID))
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": results})
}

func (h *Handlers) getChannel(w http.ResponseWriter, r *http.Request) {
	user, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	channelID := r.PathValue("id")

	channel, err := h.store.FindChannel(r.Context(), channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Channel not found")
			return
		}
		h.serverError(w, "find channel", err)
		return
	}

	member, err := h.store.IsMember(r.Context(), channelID, user.ID)
	if err != nil {
		h.serverError(w, "check membership", err)
		return
	}
	if !member {
		writeError(w, http.StatusForbidden, "You are not a member of this channel")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"channel": formatChannel(channel, channel.CreatorID == user.ID)})
}

type updateChannelRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	AvatarURL   *string `json:"avatarUrl"`
}

// updateChannel applies a partial detail update; admin only. Absent fields
// are left untouched.
func (h *Handlers) updateChannel(w http.ResponseWriter, r *http.Request) {
	user, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	channelID := r.PathValue("id")

	var req updateChannelRequest
	if !readJSON(w, r, &req) {
		return
	}

	isAdmin, err := h.store.IsAdmin(r.Context(), channelID, user.ID)
	if err != nil {
		h.serverError(w, "check admin", err)
		return
	}
	if !isAdmin {
		writeError(w, http.StatusForbidden, "Only admins can update channel details")
		return
	}

	upd := store.ChannelUpdate{Description: req.Description, AvatarURL: req.AvatarURL}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > 100 {
			writeError(w, http.StatusBadRequest, "Channel name must be 1-100 characters")
			return
		}
		upd.Name = &name
	}
	if upd.Name == nil && upd.Description == nil && upd.AvatarURL == nil {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	channel, err := h.store.UpdateChannel(r.Context(), channelID, upd)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Channel not found")
			return
		}
		h.serverError(w, "update channel", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Channel updated successfully",
		"channel": formatChannel(channel, channel.CreatorID == user.ID),
	})
}

func (h *Handlers) channelMembers(w http.ResponseWriter, r *http.Request) {
	user, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	channelID := r.PathValue("id")

	member, err := h.store.IsMember(r.Context(), channelID, user.ID)
	if err != nil {
		h.serverError(w, "check membership", err)
		return
	}
	if !member {
		writeError(w, http.StatusForbidden, "You are not a member of this channel")
		return
	}

	memberships, users, err := h.store.ChannelMembers(r.Context(), channelID)
	if err != nil {
		h.serverError(w, "channel members", err)
		return
	}

	type memberResponse struct {
		userResponse
		Role     store.Role `json:"role"`
		JoinedAt time.Time  `json:"joinedAt"`
	}
	results := make([]memberResponse, 0, len(users))
	for i := range users {
		results = append(results, memberResponse{
			userResponse: formatUser(&users[i]),
			Role:         memberships[i].Role,
			JoinedAt:     memberships[i].JoinedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": results})
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
}

// addMember lets an admin add a user directly, without the invite code.
func (h *Handlers) addMember(w http.ResponseWriter, r *http.Request) {
	user, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	channelID := r.PathValue("id")

	var req addMemberRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	isAdmin, err := h.store.IsAdmin(r.Context(), channelID, user.ID)
	if err != nil {
		h.serverError(w, "check admin", err)
		return
	}
	if !isAdmin {
		writeError(w, http.StatusForbidden, "Only admins can add members")
		return
	}

	if _, err := h.store.ResolveUser(r.Context(), req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.serverError(w, "resolve user", err)
		return
	}

	member, err := h.store.IsMember(r.Context(), channelID, req.UserID)
	if err != nil {
		h.serverError(w, "check membership", err)
		return
	}
	if member {
		writeError(w, http.StatusConflict, "User is already a member of this channel")
		return
	}

	if err := h.store.AddMember(r.Context(), channelID, req.UserID, store.RoleMember); err != nil {
		h.serverError(w, "add member", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Member added successfully"})
}

// deleteChannel removes a channel entirely; creator only. Memberships and
// message history cascade away with it.
func (h *Handlers) deleteChannel(w http.ResponseWriter, r *http.Request) {
	user, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	channelID := r.PathValue("id")

	channel, err := h.store.FindChannel(r.Context(), channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Channel not found")
			return
		}
		h.serverError(w, "find channel", err)
		return
	}
	if channel.CreatorID != user.ID {
		writeError(w, http.StatusForbidden, "Only channel creator can delete the channel")
		return
	}

	if err := h.store.DeleteChannel(r.Context(), channelID); err != nil {
		h.serverError(w, "delete channel", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Channel deleted successfully"})
}

// kickMember revokes a durable membership and raises the kick signal so an
// already-subscribed live connection is evicted and notified.
func (h *Handlers) kickMember(w http.ResponseWriter, r *http.Request) {
	user, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	channelID := r.PathValue("id")
	targetUserID := r.PathValue("userId")

	isAdmin, err := h.store.IsAdmin(r.Context(), channelID, user.ID)
	if err != nil {
		h.serverError(w, "check admin", err)
		return
	}
	if !isAdmin {
		writeError(w, http.StatusForbidden, "Only admins can remove members")
		return
	}

	channel, err := h.store.FindChannel(r.Context(), channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Channel not found")
			return
		}
		h.serverError(w, "find channel", err)
		return
	}
	if channel.CreatorID == targetUserID {
		writeError(w, http.StatusForbidden, "Cannot remove channel creator")
		return
	}

	if err := h.store.RemoveMember(r.Context(), channelID, targetUserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User is not a member of this channel")
			return
		}
		h.serverError(w, "remove member", err)
		return
	}

	h.hub.KickUser(channelID, targetUserID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "User removed from channel successfully"})
}
