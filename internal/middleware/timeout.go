package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout ограничивает контекст запроса. Ответ пишет сам handler: сервисы
// получают context.DeadlineExceeded и возвращают ошибку как обычно.
func Timeout(timeout time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}
