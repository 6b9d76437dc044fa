package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/pagecheck/idgen"
	"github.com/hazyhaar/pagecheck/kit"
	"github.com/hazyhaar/pagecheck/safe"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

var newRequestID = idgen.Prefixed("req_", idgen.UUIDv7())

// RequestID reuses a well-formed incoming X-Request-ID or mints one, stores
// it with kit.WithRequestID, echoes it in the response and attaches a
// request-scoped logger.
func RequestID(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if safe.Identifier(id) != nil {
				id = newRequestID()
			}
			w.Header().Set(RequestIDHeader, id)

			l := logger.With("request_id", id, "method", r.Method, "path", r.URL.Path)
			l.Debug("shield: request", "remote_addr", r.RemoteAddr)

			ctx := kit.WithRequestID(kit.WithTransport(r.Context(), "http"), id)
			ctx = context.WithValue(ctx, LoggerKey, l)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
