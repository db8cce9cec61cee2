package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"mercator-hq/courier/pkg/telemetry/logging"
)

// RequestIDHeader carries the admin request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every admin request with an ID so its log lines
// can be correlated. A caller-supplied X-Request-ID is kept, otherwise a
// random UUID is generated. The ID is echoed back in the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}
