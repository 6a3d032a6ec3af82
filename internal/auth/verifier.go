package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/manziro785/online-chat-back/internal/store"
)

// Handshake failure taxonomy. Any of these is fatal to the connection
// attempt; no session state is created.
var (
	ErrMissingToken = errors.New("auth: token required")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: token expired")
	ErrUnknownUser  = errors.New("auth: user not found")
)

// Claims is the signed claim shape shared by the REST auth path and the
// socket handshake.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// UserResolver resolves a verified identity claim against the user store.
type UserResolver interface {
	ResolveUser(ctx context.Context, id string) (*store.User, error)
}

// Verifier validates bearer credentials and issues tokens. HMAC signing
// with a shared secret.
type Verifier struct {
	secret []byte
	ttl    time.Duration
	users  UserResolver
}

func NewVerifier(secret string, ttl time.Duration, users UserResolver) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		ttl:    ttl,
		users:  users,
	}
}

// Authenticate validates a raw bearer token and resolves it to a user.
func (v *Verifier) Authenticate(ctx context.Context, rawToken string) (*store.User, error) {
	if rawToken == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(rawToken, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	user, err := v.users.ResolveUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("auth: resolve user: %w", err)
	}
	return user, nil
}

// IssueToken signs a token for the user, used by the REST login and
// registration handlers.
func (v *Verifier) IssueToken(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
