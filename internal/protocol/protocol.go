// Package protocol defines the named events exchanged over one persistent
// socket connection and their payload shapes. Every event carries a fixed,
// explicitly validated field set.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client → server intents.
const (
	EventJoinChannel       = "join_channel"
	EventLeaveChannel      = "leave_channel"
	EventSendMessage       = "send_message"
	EventSendDirectMessage = "send_direct_message"
	EventTyping            = "typing"
	EventStopTyping        = "stop_typing"
)

// Server → client events.
const (
	EventNewMessage          = "new_message"
	EventNewDirectMessage    = "new_direct_message"
	EventUserJoined          = "user_joined"
	EventUserLeft            = "user_left"
	EventTypingIndicator     = "typing_indicator"
	EventStopTypingIndicator = "stop_typing_indicator"
	EventUserStatus          = "user_status"
	EventKickedFromChannel   = "kicked_from_channel"
	EventUserRemoved         = "user_removed"
	EventError               = "error"
)

// Envelope wraps every frame in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Client intent payloads ---

type ChannelRef struct {
	ChannelID string `json:"channelId"`
}

type SendMessage struct {
	ChannelID string `json:"channelId"`
	Content   string `json:"content"`
}

type SendDirectMessage struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// --- Server event payloads ---

// MessagePayload is the consistent shape for both channel and direct
// messages. ChannelID and ReceiverID are mutually exclusive, discriminated
// by IsDirectMessage.
type MessagePayload struct {
	ID              string    `json:"id"`
	ChannelID       string    `json:"channelId,omitempty"`
	SenderID        string    `json:"senderId"`
	SenderNickname  string    `json:"senderNickname"`
	ReceiverID      string    `json:"receiverId,omitempty"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"createdAt"`
	IsDirectMessage bool      `json:"isDirectMessage"`
}

// RoomUser identifies an actor inside a room, used for join/leave and
// typing notifications.
type RoomUser struct {
	UserID    string `json:"userId"`
	Nickname  string `json:"nickname"`
	ChannelID string `json:"channelId"`
}

type UserStatus struct {
	UserID string `json:"userId"`
	Status string `json:"status"` // "online" or "offline"
}

type Kicked struct {
	ChannelID string `json:"channelId"`
}

type UserRemoved struct {
	UserID    string `json:"userId"`
	ChannelID string `json:"channelId"`
}

type Error struct {
	Message string `json:"message"`
}

// Encode marshals an event and its payload into a wire frame.
func Encode(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s envelope: %w", event, err)
	}
	return frame, nil
}
