package state

import "github.com/google/uuid"

// Registry is the single source of truth for which users are currently
// reachable and which broadcast groups each live session belongs to.
// Implementations must be safe for concurrent use by many connection
// lifecycles.
type Registry interface {
	// --- Session lifecycle ---

	// Put records the session as the user's live connection. At most one
	// session per user: a second connect from the same user displaces the
	// previous mapping, which is returned so the caller can close it.
	Put(sess *Session) (prev *Session, replaced bool)

	// Get returns the user's current live session, if any.
	Get(userID string) (*Session, bool)

	// Remove evicts the user's mapping only if it still points at the
	// session owning connID. A replaced connection's late disconnect must
	// not clobber its successor's entry. Removing an absent entry is a
	// no-op.
	Remove(userID string, connID uuid.UUID) bool

	// Sessions returns all live sessions (global broadcast scope).
	Sessions() []*Session

	// --- Room subscriptions ---

	// Subscribe adds the session to a room's broadcast group, creating the
	// group if needed. Idempotent.
	Subscribe(sess *Session, roomID string)

	// Unsubscribe removes the session from a room's broadcast group.
	// No-op if the session is not subscribed.
	Unsubscribe(sess *Session, roomID string)

	// UnsubscribeAll removes the session from every group it is in.
	UnsubscribeAll(sess *Session)

	// RoomSessions returns the sessions currently subscribed to a room.
	RoomSessions(roomID string) []*Session
}
