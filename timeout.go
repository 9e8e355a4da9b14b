package relay

import (
	"context"
	"net/http"
	"time"
)

// Timeout returns middleware that bounds the request context by d. The
// deadline covers the handler and the body stream: a ChunkStream polled
// after it passes ends with context.DeadlineExceeded. A handler that gives
// up with the context's error gets a 503, and a response body still
// streaming when it passes is cut off. Non-positive durations disable it.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
