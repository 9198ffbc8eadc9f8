package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/eventify/eventify-api/internal/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id and a request-scoped logger
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		r.Header.Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
	})
}
