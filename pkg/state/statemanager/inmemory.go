package statemanager

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/manziro785/online-chat-back/pkg/state"
)

// InMemoryRegistry keeps all session and room state in process-local maps.
// Entries are independent and contention is low relative to the I/O cost of
// message handling, so a pair of RW mutexes is enough.
type InMemoryRegistry struct {
	sessions map[string]*state.Session // keyed by user ID
	rooms    map[string]*state.Room

	sessMu sync.RWMutex
	roomMu sync.RWMutex

	logger *slog.Logger
}

func NewInMemoryRegistry(logger *slog.Logger) *InMemoryRegistry {
	return &InMemoryRegistry{
		sessions: make(map[string]*state.Session),
		rooms:    make(map[string]*state.Room),
		logger:   logger.With(slog.String("component", "session_registry")),
	}
}

// compile-time check to ensure InMemoryRegistry implements Registry.
var _ state.Registry = (*InMemoryRegistry)(nil)

func (m *InMemoryRegistry) Put(sess *state.Session) (*state.Session, bool) {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()

	prev, replaced := m.sessions[sess.UserID]
	m.sessions[sess.UserID] = sess

	if replaced {
		m.logger.Debug("Session replaced", slog.String("userID", sess.UserID))
	} else {
		m.logger.Debug("Session registered", slog.String("userID", sess.UserID))
	}
	return prev, replaced
}

func (m *InMemoryRegistry) Get(userID string) (*state.Session, bool) {
	m.sessMu.RLock()
	defer m.sessMu.RUnlock()
	sess, ok := m.sessions[userID]
	return sess, ok
}

func (m *InMemoryRegistry) Remove(userID string, connID uuid.UUID) bool {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok {
		// already removed; disconnect is idempotent
		return false
	}
	if sess.Conn.ID() != connID {
		// mapping belongs to a newer connection
		m.logger.Debug("Skipping removal of superseded session", slog.String("userID", userID))
		return false
	}
	delete(m.sessions, userID)
	m.logger.Debug("Session removed", slog.String("userID", userID))
	return true
}

func (m *InMemoryRegistry) Sessions() []*state.Session {
	m.sessMu.RLock()
	defer m.sessMu.RUnlock()

	all := make([]*state.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	return all
}

func (m *InMemoryRegistry) Subscribe(sess *state.Session, roomID string) {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		room = &state.Room{
			ID:      roomID,
			Members: make(map[string]*state.Session),
		}
		m.rooms[roomID] = room
	}
	room.Members[sess.UserID] = sess
	sess.Rooms[roomID] = struct{}{}

	m.logger.Debug("Session subscribed to room", slog.String("userID", sess.UserID), slog.String("roomID", roomID))
}

func (m *InMemoryRegistry) Unsubscribe(sess *state.Session, roomID string) {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()
	m.unsubscribeLocked(sess, roomID)
}

func (m *InMemoryRegistry) UnsubscribeAll(sess *state.Session) {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	for roomID := range sess.Rooms {
		m.unsubscribeLocked(sess, roomID)
	}
}

func (m *InMemoryRegistry) unsubscribeLocked(sess *state.Session, roomID string) {
	delete(sess.Rooms, roomID)

	room, ok := m.rooms[roomID]
	if !ok {
		return
	}
	// A replaced connection may race its successor into the same room slot;
	// only remove the member entry if it is still this session.
	if member, ok := room.Members[sess.UserID]; ok && member == sess {
		delete(room.Members, sess.UserID)
	}

	// For memory hygiene, remove the room if it's now empty.
	if len(room.Members) == 0 {
		delete(m.rooms, roomID)
		m.logger.Debug("Removed empty room", slog.String("roomID", roomID))
	}
}

func (m *InMemoryRegistry) RoomSessions(roomID string) []*state.Session {
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]*state.Session, 0, len(room.Members))
	for _, s := range room.Members {
		members = append(members, s)
	}
	return members
}
