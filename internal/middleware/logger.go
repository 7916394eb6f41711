package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func RequestLogger(log zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			start := time.Now()
			defer func() {
				event := log.Info()
				if ww.Status() >= http.StatusInternalServerError {
					event = log.Error()
				}

				event.
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("query", r.URL.RawQuery).
					Str("ip", r.RemoteAddr).
					Str("user_agent", r.UserAgent()).
					Str("user_id", userID(r)).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

// StructuredLogger кладет логгер с request id в контекст, сервисы достают его через zerolog.Ctx
func StructuredLogger(log zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqID := middleware.GetReqID(ctx)
			if reqID == "" {
				// без chi RequestID выше по цепочке id выдается здесь
				reqID = uuid.NewString()
				ctx = context.WithValue(ctx, middleware.RequestIDKey, reqID)
			}

			requestLog := log.With().Str("request_id", reqID).Logger()
			next.ServeHTTP(w, r.WithContext(requestLog.WithContext(ctx)))
		})
	}
}

// userID читает identity, если auth уже отработал к моменту записи лога
func userID(r *http.Request) string {
	if identity, ok := GetIdentity(r.Context()); ok {
		return identity.ID
	}
	return ""
}
