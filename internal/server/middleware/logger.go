package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// NewRequestLogger creates a middleware that logs each request after it
// completes. It sits outside the auth middleware, so the metadata carries
// the verified identity by the time the log line is written.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.Duration("duration", time.Since(start)),
			}
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				attrs = append(attrs, slog.String("ip", reqMeta.IP))
				if reqMeta.User != nil {
					attrs = append(attrs, slog.String("userID", reqMeta.User.ID))
				}
			}
			logger.Info("HTTP request handled", attrs...)
		})
	}
}
