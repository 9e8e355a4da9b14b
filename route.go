package relay

import "net/http"

// route holds a registered handler and its per-route settings.
type route struct {
	method  string
	pattern string
	name    string

	bodyLimit int64

	handler HandlerFunc
	http    http.Handler
}

// label identifies the route in logs.
func (rt *route) label() string {
	if rt.name != "" {
		return rt.name
	}
	return rt.method + " " + rt.pattern
}

// RouteOption configures a route at registration time.
type RouteOption func(*route)

// WithName sets the name the route is logged under.
func WithName(name string) RouteOption {
	return func(rt *route) {
		rt.name = name
	}
}

// WithBodyLimit sets a per-route maximum request body size in bytes.
// It overrides Config.BodyLimit for this route.
func WithBodyLimit(maxBytes int64) RouteOption {
	return func(rt *route) {
		rt.bodyLimit = maxBytes
	}
}
