package relay

import "net/http"

// Raw registers a plain http.Handler for method and pattern. The handler
// writes to the ResponseWriter itself; no Pair is bound, so it is not counted
// by InFlight. Group prefix and middleware still apply.
func Raw(reg Registrar, method, pattern string, h http.Handler, opts ...RouteOption) {
	s := reg.owner()
	rt := &route{
		method:  method,
		pattern: reg.routePrefix() + pattern,
		http:    h,
	}
	for _, opt := range opts {
		opt(rt)
	}

	routeMW := reg.routeMiddleware()
	for i := len(routeMW) - 1; i >= 0; i-- {
		rt.http = routeMW[i](rt.http)
	}

	s.addRoute(rt)
}
