package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/manziro785/online-chat-back/internal/auth"
	"github.com/manziro785/online-chat-back/internal/metrics"
)

// NewAuthMiddleware verifies the bearer credential before the request
// reaches its handler. For the socket path this runs at handshake time,
// ahead of the WebSocket upgrade, so a failed handshake never creates any
// session state. The REST API reuses the same middleware.
//
// The token is taken from the Authorization header ("Bearer <token>") or,
// for browser WebSocket clients that cannot set headers, from the "token"
// query parameter.
func NewAuthMiddleware(logger *slog.Logger, verifier *auth.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				// previous middlewares did not run; check middleware order
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			tokenString := bearerToken(r)

			user, err := verifier.Authenticate(r.Context(), tokenString)
			if err != nil {
				reason, status, message := classify(err)
				metrics.AuthFailures.WithLabelValues(reason).Inc()
				logger.Warn("Handshake authentication failed",
					slog.String("ip", reqMeta.IP),
					slog.String("reason", reason),
				)
				http.Error(w, message, status)
				return
			}

			reqMeta.User = user
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func classify(err error) (reason string, status int, message string) {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "missing_token", http.StatusUnauthorized, "Authentication token required"
	case errors.Is(err, auth.ErrExpiredToken):
		return "expired_token", http.StatusUnauthorized, "Token expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid_token", http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, auth.ErrUnknownUser):
		return "unknown_user", http.StatusUnauthorized, "User not found"
	default:
		return "internal", http.StatusInternalServerError, "Internal Server Error"
	}
}
