package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"joke-server/pkg/logger"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// RecoveryMiddleware turns a panic into a 500 envelope so one bad request
// does not take the server down.
func RecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("Unhandled error",
						logger.String("panic", fmt.Sprintf("%v", rec)),
						logger.String("stack", string(debug.Stack())),
						logger.RequestID(GetRequestID(r.Context())),
						logger.String("path", r.URL.Path),
					)
					WriteError(w, http.StatusInternalServerError, msgInternal)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware propagates X-Request-ID or generates one.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}

			ctx := context.WithValue(r.Context(), requestIDKey, reqID)
			w.Header().Set("X-Request-ID", reqID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey).(string); ok {
		return reqID
	}
	return ""
}
