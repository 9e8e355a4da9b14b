package relay

// Group is a collection of routes under a shared prefix with shared middleware.
type Group struct {
	server     *Server
	prefix     string
	middleware []Middleware
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupMiddleware adds middleware to the group.
func WithGroupMiddleware(mw ...Middleware) GroupOption {
	return func(g *Group) {
		g.middleware = append(g.middleware, mw...)
	}
}

// Group creates a new route group with the given prefix and options.
func (s *Server) Group(prefix string, opts ...GroupOption) *Group {
	g := &Group{
		server: s,
		prefix: prefix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Group creates a nested group. It inherits the parent's prefix and
// middleware; the parent's middleware runs first.
func (g *Group) Group(prefix string, opts ...GroupOption) *Group {
	child := &Group{
		server:     g.server,
		prefix:     g.prefix + prefix,
		middleware: append([]Middleware(nil), g.middleware...),
	}
	for _, opt := range opts {
		opt(child)
	}
	return child
}

func (g *Group) owner() *Server               { return g.server }
func (g *Group) routePrefix() string          { return g.prefix }
func (g *Group) routeMiddleware() []Middleware { return g.middleware }
