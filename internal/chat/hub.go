package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manziro785/online-chat-back/internal/metrics"
	"github.com/manziro785/online-chat-back/internal/protocol"
	"github.com/manziro785/online-chat-back/internal/store"
	"github.com/manziro785/online-chat-back/pkg/state"
)

// Store is the narrow slice of the external store the realtime core
// consumes. It is the single source of truth for membership and message
// durability; the hub never caches membership beyond one session's lifetime.
type Store interface {
	ResolveUser(ctx context.Context, id string) (*store.User, error)
	LoadMembershipsForUser(ctx context.Context, userID string) ([]string, error)
	IsMember(ctx context.Context, channelID, userID string) (bool, error)
	PersistChannelMessage(ctx context.Context, channelID, senderID, content string) (*store.Message, error)
	PersistDirectMessage(ctx context.Context, senderID, receiverID, content string) (*store.Message, error)
	UpdateLastSeen(ctx context.Context, userID string) error
}

// Hub coordinates all live sessions: message fan-out, presence broadcasts,
// room membership synchronization and ephemeral signals. All shared state
// lives in the registry; hub methods themselves are stateless and safe to
// call from many connection handlers concurrently.
type Hub struct {
	logger   *slog.Logger
	registry state.Registry
	store    Store
}

func NewHub(logger *slog.Logger, registry state.Registry, st Store) *Hub {
	return &Hub{
		logger:   logger.With(slog.String("component", "chat_hub")),
		registry: registry,
		store:    st,
	}
}

// Connect records a freshly authenticated session, subscribes it to every
// channel the user durably belongs to and announces the user online. A
// previous live connection from the same user is displaced and closed.
func (h *Hub) Connect(ctx context.Context, sess *state.Session) {
	prev, replaced := h.registry.Put(sess)
	if replaced {
		h.logger.Info("Cycling connection: closing previous session",
			slog.String("userID", sess.UserID))
		h.registry.UnsubscribeAll(prev)
		prev.Conn.Close(errors.New("session replaced by new connection"))
	}

	channels, err := h.store.LoadMembershipsForUser(ctx, sess.UserID)
	if err != nil {
		// the connection stays up; the client can still join_channel later
		h.logger.Error("Failed to load channel memberships", slog.String("userID", sess.UserID), slog.Any("error", err))
	}
	for _, channelID := range channels {
		h.registry.Subscribe(sess, channelID)
	}

	if err := h.store.UpdateLastSeen(ctx, sess.UserID); err != nil {
		h.logger.Error("Failed to update last seen", slog.String("userID", sess.UserID), slog.Any("error", err))
	}
	h.broadcastAll(protocol.EventUserStatus, protocol.UserStatus{UserID: sess.UserID, Status: "online"})

	h.logger.Info("User connected", slog.String("userID", sess.UserID), slog.String("nickname", sess.Nickname))
}

// Disconnect tears down a session: room subscriptions go away, the registry
// entry is conditionally evicted, and the user is announced offline. A
// session that was already displaced by a newer connection evicts nothing
// and stays silent, so a late disconnect cannot mark a reconnected user
// offline.
func (h *Hub) Disconnect(ctx context.Context, sess *state.Session) {
	h.registry.UnsubscribeAll(sess)

	if !h.registry.Remove(sess.UserID, sess.Conn.ID()) {
		return
	}

	if err := h.store.UpdateLastSeen(ctx, sess.UserID); err != nil {
		h.logger.Error("Failed to update last seen", slog.String("userID", sess.UserID), slog.Any("error", err))
	}
	h.broadcastAll(protocol.EventUserStatus, protocol.UserStatus{UserID: sess.UserID, Status: "offline"})

	h.logger.Info("User disconnected", slog.String("userID", sess.UserID), slog.String("nickname", sess.Nickname))
}

// JoinChannel subscribes the session to a channel's broadcast group after
// re-validating the durable membership, which may have changed since
// connect time. Other members are notified; the joining connection is not.
func (h *Hub) JoinChannel(ctx context.Context, sess *state.Session, channelID string) error {
	member, err := h.store.IsMember(ctx, channelID, sess.UserID)
	if err != nil {
		return fmt.Errorf("join channel: %w", err)
	}
	if !member {
		return ErrNotAMember
	}

	h.registry.Subscribe(sess, channelID)
	h.broadcastRoom(channelID, sess, protocol.EventUserJoined, protocol.RoomUser{
		UserID:    sess.UserID,
		Nickname:  sess.Nickname,
		ChannelID: channelID,
	})

	h.logger.Debug("User joined channel room", slog.String("userID", sess.UserID), slog.String("channelID", channelID))
	return nil
}

// LeaveChannel unsubscribes unconditionally. Local subscription state is
// client-directed, not admin-enforced, so there is no membership check and
// leaving an already-left room is a no-op.
func (h *Hub) LeaveChannel(sess *state.Session, channelID string) {
	h.registry.Unsubscribe(sess, channelID)
	h.broadcastRoom(channelID, sess, protocol.EventUserLeft, protocol.RoomUser{
		UserID:    sess.UserID,
		Nickname:  sess.Nickname,
		ChannelID: channelID,
	})

	h.logger.Debug("User left channel room", slog.String("userID", sess.UserID), slog.String("channelID", channelID))
}

// SendChannelMessage runs the full pipeline for a channel message:
// validate, authorize against the durable membership, persist, then fan out
// to every connection subscribed to the room, the sender included. If
// persistence fails nothing is broadcast.
func (h *Hub) SendChannelMessage(ctx context.Context, sess *state.Session, channelID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	member, err := h.store.IsMember(ctx, channelID, sess.UserID)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if !member {
		return ErrNotAMember
	}

	msg, err := h.store.PersistChannelMessage(ctx, channelID, sess.UserID, content)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	h.broadcastRoom(channelID, nil, protocol.EventNewMessage, protocol.MessagePayload{
		ID:              msg.ID,
		ChannelID:       msg.ChannelID,
		SenderID:        msg.SenderID,
		SenderNickname:  sess.Nickname,
		Content:         msg.Content,
		CreatedAt:       msg.CreatedAt,
		IsDirectMessage: false,
	})

	h.logger.Debug("Channel message sent", slog.String("channelID", channelID), slog.String("senderID", sess.UserID))
	return nil
}

// SendDirectMessage validates the recipient, persists, then delivers to the
// receiver's live session if present (dropped, not queued, otherwise) and
// always echoes a copy back to the sender as confirmation.
func (h *Hub) SendDirectMessage(ctx context.Context, sess *state.Session, receiverID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	if _, err := h.store.ResolveUser(ctx, receiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRecipientNotFound
		}
		return fmt.Errorf("send direct message: %w", err)
	}

	msg, err := h.store.PersistDirectMessage(ctx, sess.UserID, receiverID, content)
	if err != nil {
		return fmt.Errorf("send direct message: %w", err)
	}

	payload := protocol.MessagePayload{
		ID:              msg.ID,
		SenderID:        msg.SenderID,
		SenderNickname:  sess.Nickname,
		ReceiverID:      msg.ReceiverID,
		Content:         msg.Content,
		CreatedAt:       msg.CreatedAt,
		IsDirectMessage: true,
	}

	if receiver, ok := h.registry.Get(receiverID); ok {
		h.deliver(receiver, protocol.EventNewDirectMessage, payload)
	}
	h.deliver(sess, protocol.EventNewDirectMessage, payload)

	h.logger.Debug("Direct message sent", slog.String("senderID", sess.UserID), slog.String("receiverID", receiverID))
	return nil
}

// Typing relays a typing indicator to the other members of the room group.
// Fire and forget: no persistence, no membership re-check, no delivery
// guarantee.
func (h *Hub) Typing(sess *state.Session, channelID string) {
	h.broadcastRoom(channelID, sess, protocol.EventTypingIndicator, protocol.RoomUser{
		UserID:    sess.UserID,
		Nickname:  sess.Nickname,
		ChannelID: channelID,
	})
}

// StopTyping relays the end of a typing indicator, same semantics as Typing.
func (h *Hub) StopTyping(sess *state.Session, channelID string) {
	h.broadcastRoom(channelID, sess, protocol.EventStopTypingIndicator, protocol.RoomUser{
		UserID:    sess.UserID,
		Nickname:  sess.Nickname,
		ChannelID: channelID,
	})
}

// KickUser propagates a REST-side membership revocation to the live layer:
// the kicked user's session, if any, is told to drop the channel and is
// evicted from the broadcast group; remaining members see a removal notice.
func (h *Hub) KickUser(channelID, kickedUserID string) {
	if sess, ok := h.registry.Get(kickedUserID); ok {
		h.deliver(sess, protocol.EventKickedFromChannel, protocol.Kicked{ChannelID: channelID})
		h.registry.Unsubscribe(sess, channelID)
	}
	h.broadcastRoom(channelID, nil, protocol.EventUserRemoved, protocol.UserRemoved{
		UserID:    kickedUserID,
		ChannelID: channelID,
	})

	h.logger.Info("User kicked from channel", slog.String("channelID", channelID), slog.String("userID", kickedUserID))
}

// SendError reports a non-fatal, per-intent failure to one connection.
func (h *Hub) SendError(sess *state.Session, message string) {
	h.deliver(sess, protocol.EventError, protocol.Error{Message: message})
}

// --- fan-out helpers ---

func (h *Hub) deliver(sess *state.Session, event string, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode event", slog.String("event", event), slog.Any("error", err))
		return
	}
	sess.Conn.Send(frame)
	metrics.MessagesSent.Inc()
}

// broadcastRoom fans a frame out to every session subscribed to the room,
// except exclude (pass nil to include everyone).
func (h *Hub) broadcastRoom(roomID string, exclude *state.Session, event string, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode event", slog.String("event", event), slog.Any("error", err))
		return
	}
	for _, member := range h.registry.RoomSessions(roomID) {
		if member == exclude {
			continue
		}
		member.Conn.Send(frame)
		metrics.MessagesSent.Inc()
	}
}

// broadcastAll fans a frame out to every live session. Presence goes to
// everyone, not only users sharing a channel.
func (h *Hub) broadcastAll(event string, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode event", slog.String("event", event), slog.Any("error", err))
		return
	}
	for _, sess := range h.registry.Sessions() {
		sess.Conn.Send(frame)
		metrics.MessagesSent.Inc()
	}
}
