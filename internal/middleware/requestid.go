// Package middleware provides HTTP middleware for Studio.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/Strob0t/Studio/internal/logger"
)

const (
	headerRequestID     = "X-Request-ID"
	headerCorrelationID = "X-Correlation-ID"
)

// Inbound ids end up in every log record, so only a safe charset is kept.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID stores a request id in the context and echoes it in the
// X-Request-ID response header. The id comes from X-Request-ID, then
// X-Correlation-ID; anything missing or malformed is replaced by a UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := inboundRequestID(r)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

func inboundRequestID(r *http.Request) string {
	for _, h := range []string{headerRequestID, headerCorrelationID} {
		if id := r.Header.Get(h); validRequestID.MatchString(id) {
			return id
		}
	}
	return ""
}
