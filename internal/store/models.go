package store

import "time"

// Role of a user inside a channel.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type User struct {
	ID           string
	Email        string
	Nickname     string
	PasswordHash string
	AvatarURL    string
	CreatedAt    time.Time
	LastSeen     time.Time
}

type Channel struct {
	ID          string
	Name        string
	Description string
	AvatarURL   string
	AdminCode   string
	CreatorID   string
	CreatedAt   time.Time
}

// Membership is the authoritative (channel, user, role) record. The realtime
// core treats it as read-only ground truth for authorization.
type Membership struct {
	ChannelID string
	UserID    string
	Role      Role
	JoinedAt  time.Time
}

// Message is a persisted chat message. Exactly one of ChannelID and
// ReceiverID is set, discriminated by IsDirect.
type Message struct {
	ID         string
	ChannelID  string
	SenderID   string
	ReceiverID string
	Content    string
	IsDirect   bool
	CreatedAt  time.Time

	// SenderNickname is populated by history queries that join users.
	SenderNickname string
}

// Conversation summarizes one direct-message peer for the conversation list.
type Conversation struct {
	UserID        string
	Nickname      string
	AvatarURL     string
	LastSeen      time.Time
	LastMessageAt time.Time
}
