package relay

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Middleware is the standard middleware signature compatible with the entire
// Go middleware ecosystem.
type Middleware func(next http.Handler) http.Handler

// Recovery returns middleware that recovers from panics, including pair
// protocol violations, and responds with 500. http.ErrAbortHandler is
// re-raised so a body that failed after its headers were sent still aborts
// the connection. A nil logger uses slog.Default.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint,err113 // sentinel compared by identity, as net/http does
					panic(rec)
				}

				msg := "panic recovered"
				if err, ok := rec.(error); ok {
					var pe *PhaseError
					if errors.As(err, &pe) {
						msg = "pair protocol violation"
					}
				}
				logger.ErrorContext(r.Context(), msg,
					"panic", rec,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
