// Package router turns raw socket frames into typed intents on the chat
// hub. It is the handler boundary of the error model: every per-intent
// failure becomes a targeted error event and never closes the connection.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/manziro785/online-chat-back/internal/chat"
	"github.com/manziro785/online-chat-back/internal/metrics"
	"github.com/manziro785/online-chat-back/internal/protocol"
	"github.com/manziro785/online-chat-back/pkg/state"
)

// User-facing error strings, kept stable for clients.
const (
	msgInvalidFormat     = "Invalid message format"
	msgUnknownEvent      = "Unknown event"
	msgEmptyContent      = "Message content cannot be empty"
	msgNotAMember        = "You are not a member of this channel"
	msgRecipientNotFound = "Recipient not found"
	msgJoinFailed        = "Failed to join channel"
	msgSendFailed        = "Failed to send message"
	msgSendDirectFailed  = "Failed to send direct message"
)

type EventRouter struct {
	logger *slog.Logger
	hub    *chat.Hub
}

func NewEventRouter(logger *slog.Logger, hub *chat.Hub) *EventRouter {
	return &EventRouter{
		logger: logger.With(slog.String("component", "event_router")),
		hub:    hub,
	}
}

// Handle processes one inbound frame for an authenticated session. Called
// synchronously from the session's read pump, so a single client's intents
// are handled in arrival order.
func (r *EventRouter) Handle(ctx context.Context, sess *state.Session, raw []byte) {
	metrics.MessagesReceived.Inc()

	event := gjson.GetBytes(raw, "event")
	if !event.Exists() || event.String() == "" {
		r.logger.Warn("Frame missing event name", slog.String("userID", sess.UserID))
		r.hub.SendError(sess, msgInvalidFormat)
		return
	}
	payload := json.RawMessage(gjson.GetBytes(raw, "payload").Raw)

	r.logger.Debug("Handling intent", slog.String("event", event.String()), slog.String("userID", sess.UserID))

	switch event.String() {
	case protocol.EventJoinChannel:
		var p protocol.ChannelRef
		if !r.decode(sess, payload, &p) {
			return
		}
		if err := r.hub.JoinChannel(ctx, sess, p.ChannelID); err != nil {
			r.report(sess, event.String(), err, msgJoinFailed)
		}

	case protocol.EventLeaveChannel:
		var p protocol.ChannelRef
		if !r.decode(sess, payload, &p) {
			return
		}
		r.hub.LeaveChannel(sess, p.ChannelID)

	case protocol.EventSendMessage:
		var p protocol.SendMessage
		if !r.decode(sess, payload, &p) {
			return
		}
		if err := r.hub.SendChannelMessage(ctx, sess, p.ChannelID, p.Content); err != nil {
			r.report(sess, event.String(), err, msgSendFailed)
		}

	case protocol.EventSendDirectMessage:
		var p protocol.SendDirectMessage
		if !r.decode(sess, payload, &p) {
			return
		}
		if err := r.hub.SendDirectMessage(ctx, sess, p.ReceiverID, p.Content); err != nil {
			r.report(sess, event.String(), err, msgSendDirectFailed)
		}

	case protocol.EventTyping:
		var p protocol.ChannelRef
		if !r.decode(sess, payload, &p) {
			return
		}
		r.hub.Typing(sess, p.ChannelID)

	case protocol.EventStopTyping:
		var p protocol.ChannelRef
		if !r.decode(sess, payload, &p) {
			return
		}
		r.hub.StopTyping(sess, p.ChannelID)

	default:
		r.logger.Warn("Received unknown event", slog.String("event", event.String()), slog.String("userID", sess.UserID))
		r.hub.SendError(sess, msgUnknownEvent)
	}
}

func (r *EventRouter) decode(sess *state.Session, payload json.RawMessage, dst any) bool {
	if len(payload) == 0 {
		r.hub.SendError(sess, msgInvalidFormat)
		return false
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		r.logger.Warn("Failed to unmarshal intent payload", slog.String("userID", sess.UserID), slog.Any("error", err))
		r.hub.SendError(sess, msgInvalidFormat)
		return false
	}
	return true
}

// report maps a handler failure to its user-facing message. Validation,
// authorization and not-found classes keep their specific strings;
// everything else is an infrastructure failure reported generically and
// logged.
func (r *EventRouter) report(sess *state.Session, event string, err error, fallback string) {
	switch {
	case errors.Is(err, chat.ErrEmptyContent):
		r.hub.SendError(sess, msgEmptyContent)
	case errors.Is(err, chat.ErrNotAMember):
		r.hub.SendError(sess, msgNotAMember)
	case errors.Is(err, chat.ErrRecipientNotFound):
		r.hub.SendError(sess, msgRecipientNotFound)
	default:
		r.logger.Error("Intent failed", slog.String("event", event), slog.String("userID", sess.UserID), slog.Any("error", err))
		r.hub.SendError(sess, fallback)
	}
}
