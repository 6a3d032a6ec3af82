package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manziro785/online-chat-back/internal/store"
)

type fakeResolver struct {
	users map[string]*store.User
}

func (f *fakeResolver) ResolveUser(_ context.Context, id string) (*store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func newTestVerifier() (*Verifier, *fakeResolver) {
	resolver := &fakeResolver{users: map[string]*store.User{
		"u1": {ID: "u1", Nickname: "alice"},
	}}
	return NewVerifier("test-secret", time.Hour, resolver), resolver
}

func TestAuthenticate(t *testing.T) {
	v, _ := newTestVerifier()
	ctx := context.Background()

	token, err := v.IssueToken("u1")
	require.NoError(t, err)

	user, err := v.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Nickname)
}

func TestAuthenticateFailures(t *testing.T) {
	v, _ := newTestVerifier()
	ctx := context.Background()

	t.Run("missing token", func(t *testing.T) {
		_, err := v.Authenticate(ctx, "")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := v.Authenticate(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewVerifier("other-secret", time.Hour, &fakeResolver{})
		token, err := other.IssueToken("u1")
		require.NoError(t, err)

		_, err = v.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewVerifier("test-secret", -time.Minute, &fakeResolver{})
		token, err := expired.IssueToken("u1")
		require.NoError(t, err)

		_, err = v.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("unknown user", func(t *testing.T) {
		token, err := v.IssueToken("ghost")
		require.NoError(t, err)

		_, err = v.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrUnknownUser)
	})

	t.Run("empty user claim", func(t *testing.T) {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = v.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
