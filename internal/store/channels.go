package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func (s *Store) CreateChannel(ctx context.Context, name, description, avatarURL, adminCode, creatorID string) (*Channel, error) {
	now := time.Now().UTC()
	c := &Channel{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		AvatarURL:   avatarURL,
		AdminCode:   adminCode,
		CreatorID:   creatorID,
		CreatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (id, name, description, avatar_url, admin_code, creator_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.AvatarURL, c.AdminCode, c.CreatorID, now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("store: create channel: %w", err)
	}
	return c, nil
}

func (s *Store) FindChannel(ctx context.Context, id string) (*Channel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, avatar_url, admin_code, creator_id, created_at
		 FROM channels WHERE id = ?`, id)
	return scanChannel(row)
}

func (s *Store) FindChannelByAdminCode(ctx context.Context, adminCode string) (*Channel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, avatar_url, admin_code, creator_id, created_at
		 FROM channels WHERE admin_code = ?`, adminCode)
	return scanChannel(row)
}

func (s *Store) AddMember(ctx context.Context, channelID, userID string, role Role) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_members (channel_id, user_id, role, joined_at)
		 VALUES (?, ?, ?, ?)`,
		channelID, userID, string(role), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("store: add member: %w", err)
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, channelID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM channel_members WHERE channel_id = ? AND user_id = ?",
		channelID, userID)
	if err != nil {
		return fmt.Errorf("store: remove member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ChannelUpdate carries the optional fields of a detail update; nil means
// leave the column alone.
type ChannelUpdate struct {
	Name        *string
	Description *string
	AvatarURL   *string
}

// UpdateChannel applies a partial detail update and returns the fresh row.
func (s *Store) UpdateChannel(ctx context.Context, id string, upd ChannelUpdate) (*Channel, error) {
	sets, args := make([]string, 0, 3), make([]any, 0, 4)
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.AvatarURL != nil {
		sets = append(sets, "avatar_url = ?")
		args = append(args, *upd.AvatarURL)
	}
	if len(sets) == 0 {
		return s.FindChannel(ctx, id)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE channels SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("store: update channel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.FindChannel(ctx, id)
}

// DeleteChannel removes a channel. Memberships and channel messages go with
// it through the cascading foreign keys.
func (s *Store) DeleteChannel(ctx context.Context, channelID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM channels WHERE id = ?", channelID)
	if err != nil {
		return fmt.Errorf("store: delete channel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsMember reports whether the user currently holds a durable membership in
// the channel. This is the authoritative check the fan-out engine relies
// on, not the cached room subscription.
func (s *Store) IsMember(ctx context.Context, channelID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM channel_members WHERE channel_id = ? AND user_id = ?",
		channelID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: is member: %w", err)
	}
	return n > 0, nil
}

func (s *Store) IsAdmin(ctx context.Context, channelID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM channel_members
		 WHERE channel_id = ? AND user_id = ? AND role = 'admin'`,
		channelID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: is admin: %w", err)
	}
	return n > 0, nil
}

// LoadMembershipsForUser returns the ids of every channel the user belongs
// to. Used by the connection lifecycle to subscribe a fresh session to all
// of its broadcast groups.
func (s *Store) LoadMembershipsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT channel_id FROM channel_members WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("store: load memberships: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan membership: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) UserChannels(ctx context.Context, userID string) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.description, c.avatar_url, c.admin_code, c.creator_id, c.created_at
		 FROM channels c
		 JOIN channel_members cm ON c.id = cm.channel_id
		 WHERE cm.user_id = ?
		 ORDER BY cm.joined_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: user channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *c)
	}
	return channels, rows.Err()
}

// ChannelMembers lists users in a channel together with their role.
func (s *Store) ChannelMembers(ctx context.Context, channelID string) ([]Membership, []User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.nickname, u.password_hash, u.avatar_url, u.created_at, u.last_seen,
		        cm.role, cm.joined_at
		 FROM users u
		 JOIN channel_members cm ON u.id = cm.user_id
		 WHERE cm.channel_id = ?
		 ORDER BY cm.joined_at ASC`, channelID)
	if err != nil {
		return nil, nil, fmt.Errorf("store: channel members: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	var users []User
	for rows.Next() {
		var u User
		var role, createdAt, lastSeen, joinedAt string
		if err := rows.Scan(&u.ID, &u.Email, &u.Nickname, &u.PasswordHash, &u.AvatarURL,
			&createdAt, &lastSeen, &role, &joinedAt); err != nil {
			return nil, nil, fmt.Errorf("store: scan channel member: %w", err)
		}
		u.CreatedAt = parseTime(createdAt)
		u.LastSeen = parseTime(lastSeen)
		users = append(users, u)
		memberships = append(memberships, Membership{
			ChannelID: channelID,
			UserID:    u.ID,
			Role:      Role(role),
			JoinedAt:  parseTime(joinedAt),
		})
	}
	return memberships, users, rows.Err()
}

func scanChannel(row rowScanner) (*Channel, error) {
	var c Channel
	var createdAt string
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.AvatarURL, &c.AdminCode, &c.CreatorID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan channel: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}
