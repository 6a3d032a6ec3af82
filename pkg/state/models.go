package state

import (
	"time"

	"github.com/google/uuid"
)

// Conn is the slice of the transport layer a session needs: targeted
// delivery and teardown. Implemented by *transport.Connection.
type Conn interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

// Session is the live, in-memory state of one authenticated connection.
// Created after a successful handshake, destroyed on disconnect, never
// persisted.
type Session struct {
	UserID   string
	Nickname string
	Conn     Conn

	// Rooms is the set of broadcast groups this session is subscribed to.
	// Mutated only by the registry, under its lock.
	Rooms map[string]struct{}

	CreatedAt time.Time
}

func NewSession(userID, nickname string, conn Conn) *Session {
	return &Session{
		UserID:    userID,
		Nickname:  nickname,
		Conn:      conn,
		Rooms:     make(map[string]struct{}),
		CreatedAt: time.Now(),
	}
}

// Room is a server-side broadcast group for one channel. Subscription is
// independent of durable membership, which lives in the external store.
type Room struct {
	ID      string
	Members map[string]*Session // keyed by user ID
}
