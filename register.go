package relay

import "net/http"

// Registrar is the interface accepted by the registration functions.
// Both *Server and *Group implement it.
type Registrar interface {
	owner() *Server
	routePrefix() string
	routeMiddleware() []Middleware
}

func (s *Server) owner() *Server               { return s }
func (s *Server) routePrefix() string          { return "" }
func (s *Server) routeMiddleware() []Middleware { return nil }

// addRoute registers rt with the server's mux. Global middleware is applied
// in ServeHTTP, not here; only group middleware is baked into rt.http.
func (s *Server) addRoute(rt *route) {
	s.mustBeOpen("route registration")
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mux.Handle(rt.method+" "+rt.pattern, rt.http)
	s.routes = append(s.routes, rt)
}

// Handle registers h for method and pattern. Patterns follow net/http
// ServeMux syntax, including {name} wildcards read with Request.PathValue.
func Handle(reg Registrar, method, pattern string, h HandlerFunc, opts ...RouteOption) {
	s := reg.owner()
	rt := &route{
		method:    method,
		pattern:   reg.routePrefix() + pattern,
		handler:   h,
		bodyLimit: s.cfg.BodyLimit,
	}
	for _, opt := range opts {
		opt(rt)
	}

	rt.http = s.serve(rt)

	routeMW := reg.routeMiddleware()
	for i := len(routeMW) - 1; i >= 0; i-- {
		rt.http = routeMW[i](rt.http)
	}

	s.addRoute(rt)
}

// Get registers a GET handler.
func Get(reg Registrar, pattern string, h HandlerFunc, opts ...RouteOption) {
	Handle(reg, http.MethodGet, pattern, h, opts...)
}

// Post registers a POST handler.
func Post(reg Registrar, pattern string, h HandlerFunc, opts ...RouteOption) {
	Handle(reg, http.MethodPost, pattern, h, opts...)
}

// Put registers a PUT handler.
func Put(reg Registrar, pattern string, h HandlerFunc, opts ...RouteOption) {
	Handle(reg, http.MethodPut, pattern, h, opts...)
}

// Patch registers a PATCH handler.
func Patch(reg Registrar, pattern string, h HandlerFunc, opts ...RouteOption) {
	Handle(reg, http.MethodPatch, pattern, h, opts...)
}

// Delete registers a DELETE handler.
func Delete(reg Registrar, pattern string, h HandlerFunc, opts ...RouteOption) {
	Handle(reg, http.MethodDelete, pattern, h, opts...)
}
