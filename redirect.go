package relay

import (
	"net/http"
	"strings"
)

// Redirect returns a bodiless response pointing the client at target. The
// status must be a 3xx code; anything else is replaced by 302 Found.
func Redirect(req *Request, status int, target string) *Response {
	if status < 300 || status > 399 {
		status = http.StatusFound
	}
	res := req.Respond(status)
	res.Header.Set("Location", target)
	return res
}

// TrailingSlash returns middleware that strips trailing slashes and redirects.
func TrailingSlash() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" && strings.HasSuffix(r.URL.Path, "/") {
				target := strings.TrimRight(r.URL.Path, "/")
				if r.URL.RawQuery != "" {
					target += "?" + r.URL.RawQuery
				}
				http.Redirect(w, r, target, http.StatusMovedPermanently)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
