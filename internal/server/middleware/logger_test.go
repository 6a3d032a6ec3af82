package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manziro785/online-chat-back/internal/store"
)

func TestRequestLoggerIncludesIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	// stands in for the auth middleware attaching the verified identity
	attach := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				reqMeta.User = &store.User{ID: "u1", Nickname: "alice"}
			}
			next.ServeHTTP(w, r)
		})
	}

	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
		RequestMetadataMiddleware(),
		NewRequestLogger(logger),
		attach,
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/auth/me", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	out := buf.String()
	assert.Contains(t, out, "userID=u1")
	assert.Contains(t, out, "method=GET")
	assert.Contains(t, out, "duration=")
}

func TestRequestLoggerWithoutIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		RequestMetadataMiddleware(),
		NewRequestLogger(logger),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/auth/login", nil))

	out := buf.String()
	assert.Contains(t, out, "method=POST")
	assert.NotContains(t, out, "userID=")
}
