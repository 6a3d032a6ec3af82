package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/manziro785/online-chat-back/internal/store"
)

type messageResponse struct {
	ID              string    `json:"id"`
	ChannelID       string    `json:"channelId,omitempty"`
	SenderID        string    `json:"senderId"`
	SenderNickname  string    `json:"senderNickname"`
	ReceiverID      string    `json:"receiverId,omitempty"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"createdAt"`
	IsDirectMessage bool      `json:"isDirectMessage"`
}

func formatMessages(msgs []store.Message) []messageResponse {
	results := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		results = append(results, messageResponse{
			ID:              m.ID,
			ChannelID:       m.ChannelID,
			SenderID:        m.SenderID,
			SenderNickname:  m.SenderNickname,
			ReceiverID:      m.ReceiverID,
			Content:         m.Content,
			CreatedAt:       m.CreatedAt,
			IsDirectMessage: m.IsDirect,
		})
	}
	return results
}

func (h *Handlers) channelMessages(w http.ResponseWriter, r *http.Request) {
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

	limit, offset := pagination(r)
	msgs, err := h.store.ChannelMessages(r.Context(), channelID, limit, offset)
	if err != nil {
		h.serverError(w, "channel messages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": formatMessages(msgs)})
}

func (h *Handlers) directMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	peerID := r.PathValue("userId")

	if _, err := h.store.ResolveUser(r.Context(), peerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.serverError(w, "resolve user", err)
		return
	}

	limit, offset := pagination(r)
	msgs, err := h.store.DirectMessages(r.Context(), user.ID, peerID, limit, offset)
	if err != nil {
		h.serverError(w, "direct messages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": formatMessages(msgs)})
}

func (h *Handlers) conversations(w http.ResponseWriter, r *http.Request) {
	user, ok := requester(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	convs, err := h.store.Conversations(r.Context(), user.ID)
	if err != nil {
		h.serverError(w, "conversations", err)
		return
	}

	type conversationResponse struct {
		UserID        string    `json:"userId"`
		Nickname      string    `json:"nickname"`
		AvatarURL     string    `json:"avatarUrl"`
		LastSeen      time.Time `json:"lastSeen"`
		LastMessageAt time.Time `json:"lastMessageAt"`
	}
	results := make([]conversationResponse, 0, len(convs))
	for _, c := range convs {
		results = append(results, conversationResponse{
			UserID:        c.UserID,
			Nickname:      c.Nickname,
			AvatarURL:     c.AvatarURL,
			LastSeen:      c.LastSeen,
			LastMessageAt: c.LastMessageAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": results})
}
