package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PersistChannelMessage saves a channel message and returns the stored row.
// Persistence happens-before any broadcast of the message.
func (s *Store) PersistChannelMessage(ctx context.Context, channelID, senderID, content string) (*Message, error) {
	now := time.Now().UTC()
	m := &Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		IsDirect:  false,
		CreatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, channel_id, sender_id, content, is_direct_message, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		m.ID, m.ChannelID, m.SenderID, m.Content, now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("store: persist channel message: %w", err)
	}
	return m, nil
}

// PersistDirectMessage saves a direct message and returns the stored row.
func (s *Store) PersistDirectMessage(ctx context.Context, senderID, receiverID, content string) (*Message, error) {
	now := time.Now().UTC()
	m := &Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		IsDirect:   true,
		CreatedAt:  now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, content, is_direct_message, created_at)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		m.ID, m.SenderID, m.ReceiverID, m.Content, now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("store: persist direct message: %w", err)
	}
	return m, nil
}

// ChannelMessages returns a page of channel history in chronological order.
func (s *Store) ChannelMessages(ctx context.Context, channelID string, limit, offset int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.channel_id, m.sender_id, m.content, m.created_at, u.nickname
		 FROM messages m
		 JOIN users u ON m.sender_id = u.id
		 WHERE m.channel_id = ? AND m.is_direct_message = 0
		 ORDER BY m.created_at DESC
		 LIMIT ? OFFSET ?`,
		channelID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: channel messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.SenderID, &m.Content, &createdAt, &m.SenderNickname); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

// DirectMessages returns a page of the conversation between two users in
// chronological order.
func (s *Store) DirectMessages(ctx context.Context, userA, userB string, limit, offset int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.sender_id, m.receiver_id, m.content, m.created_at, u.nickname
		 FROM messages m
		 JOIN users u ON m.sender_id = u.id
		 WHERE m.is_direct_message = 1
		   AND ((m.sender_id = ? AND m.receiver_id = ?)
		     OR (m.sender_id = ? AND m.receiver_id = ?))
		 ORDER BY m.created_at DESC
		 LIMIT ? OFFSET ?`,
		userA, userB, userB, userA, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: direct messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &createdAt, &m.SenderNickname); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.IsDirect = true
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

// Conversations lists the user's direct-message peers, most recent first.
func (s *Store) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT peer.id, peer.nickname, peer.avatar_url, peer.last_seen, MAX(m.created_at) AS last_message_at
		 FROM messages m
		 JOIN users peer ON peer.id = CASE WHEN m.sender_id = ? THEN m.receiver_id ELSE m.sender_id END
		 WHERE m.is_direct_message = 1 AND (m.sender_id = ? OR m.receiver_id = ?)
		 GROUP BY peer.id, peer.nickname, peer.avatar_url, peer.last_seen
		 ORDER BY last_message_at DESC`,
		userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("store: conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var lastSeen, lastMessageAt string
		if err := rows.Scan(&c.UserID, &c.Nickname, &c.AvatarURL, &lastSeen, &lastMessageAt); err != nil {
			return nil, fmt.Errorf("store: scan conversation: %w", err)
		}
		c.LastSeen = parseTime(lastSeen)
		c.LastMessageAt = parseTime(lastMessageAt)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func reverse(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
