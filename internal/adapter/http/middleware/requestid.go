package middleware

import (
	"net/http"

	wrap "github.com/askarbek/ride-driver-agent/pkg/logger/wrapper"
	"github.com/askarbek/ride-driver-agent/pkg/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an ID, honoring one supplied by the
// client, and echoes it back in the response headers.
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			if generated, err := uuid.New(); err == nil {
				id = generated.String()
			}
		}

		w.Header().Set(requestIDHeader, id)

		ctx := wrap.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
