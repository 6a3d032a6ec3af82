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

const userColumns = "id, email, nickname, password_hash, avatar_url, created_at, last_seen"

func (s *Store) CreateUser(ctx context.Context, email, nickname, passwordHash string) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Nickname:     nickname,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		LastSeen:     now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, nickname, password_hash, avatar_url, created_at, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Nickname, u.PasswordHash, u.AvatarURL,
		now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	return u, nil
}

// ResolveUser looks up a user by id. Returns ErrNotFound if the identity no
// longer exists.
func (s *Store) ResolveUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email)
	return scanUser(row)
}

func (s *Store) FindUserByNickname(ctx context.Context, nickname string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE nickname = ?", nickname)
	return scanUser(row)
}

// UserUpdate carries the optional profile fields of an update; nil means
// leave the column alone.
type UserUpdate struct {
	Nickname  *string
	AvatarURL *string
}

// UpdateUser applies a partial profile update and returns the fresh row.
func (s *Store) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*User, error) {
	sets, args := make([]string, 0, 2), make([]any, 0, 3)
	if upd.Nickname != nil {
		sets = append(sets, "nickname = ?")
		args = append(args, *upd.Nickname)
	}
	if upd.AvatarURL != nil {
		sets = append(sets, "avatar_url = ?")
		args = append(args, *upd.AvatarURL)
	}
	if len(sets) == 0 {
		return s.ResolveUser(ctx, id)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("store: update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.ResolveUser(ctx, id)
}

func (s *Store) SearchUsers(ctx context.Context, query string, limit int) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+` FROM users
		 WHERE nickname LIKE ? ORDER BY nickname LIMIT ?`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("store: search users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateLastSeen stamps the user's last-active timestamp.
func (s *Store) UpdateLastSeen(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_seen = ? WHERE id = ?",
		time.Now().UTC().Format(timeLayout), userID)
	if err != nil {
		return fmt.Errorf("store: update last seen: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var createdAt, lastSeen string
	err := row.Scan(&u.ID, &u.Email, &u.Nickname, &u.PasswordHash, &u.AvatarURL, &createdAt, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	u.LastSeen = parseTime(lastSeen)
	return &u, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
