package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Server is the long-lived context shared by every request: configuration,
// routes, middleware, managed state and the count of live pairs. It
// implements http.Handler.
//
// Routes and managed state must be registered before the first request is
// served; after that the Server is read-only.
type Server struct {
	mux        *http.ServeMux
	middleware []Middleware
	routes     []*route

	cfg          Config
	logger       *slog.Logger
	metrics      *Metrics
	errorHandler ErrorHandler
	encoders     []Encoder
	codecs       *codecRegistry
	compressor   *compressor

	state  map[any]any
	frozen atomic.Bool
	mu     sync.Mutex

	refs refCount
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ErrorHandler builds the response for a handler error.
type ErrorHandler func(req *Request, err error) *Response

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) ServerOption {
	return func(s *Server) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger used by the serving loop.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics sets the Prometheus collectors updated by the server.
func WithMetrics(m *Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithErrorHandler sets a custom builder for handler error responses.
func WithErrorHandler(h ErrorHandler) ServerOption {
	return func(s *Server) {
		s.errorHandler = h
	}
}

// WithChunkSize sets the chunk size for sized bodies and for chunked bodies
// that do not choose their own.
func WithChunkSize(n int) ServerOption {
	return func(s *Server) {
		s.cfg.ChunkSize = n
	}
}

// WithEncoder registers an additional response encoder for Encode.
func WithEncoder(enc Encoder) ServerOption {
	return func(s *Server) {
		s.encoders = append(s.encoders, enc)
	}
}

// New creates a Server with the given options. Rate limiting and handler
// timeouts named in the configuration are installed as the outermost
// middleware.
func New(opts ...ServerOption) *Server {
	s := &Server{
		mux:   http.NewServeMux(),
		cfg:   DefaultConfig(),
		state: make(map[any]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cfg.ChunkSize < 1 {
		s.cfg.ChunkSize = DefaultChunkSize
	}
	if s.cfg.MaxChunkSize < s.cfg.ChunkSize {
		s.cfg.MaxChunkSize = max(DefaultMaxChunkSize, s.cfg.ChunkSize)
	}
	s.codecs = newCodecRegistry(s.encoders)

	if rl := s.cfg.RateLimit; rl != nil && rl.Rate > 0 {
		s.middleware = append(s.middleware, RateLimit(*rl))
	}
	if s.cfg.HandlerTimeout > 0 {
		s.middleware = append(s.middleware, Timeout(s.cfg.HandlerTimeout))
	}
	return s
}

// Config returns the server configuration.
func (s *Server) Config() Config { return s.cfg }

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger { return s.logger }

// Use adds middleware to the server. Middleware is applied in the order added.
func (s *Server) Use(mw ...Middleware) {
	s.mustBeOpen("Use")
	s.middleware = append(s.middleware, mw...)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(s.mux)
	for i := len(s.middleware) - 1; i >= 0; i-- {
		handler = s.middleware[i](handler)
	}
	handler.ServeHTTP(w, req)
}

// InFlight returns the number of pairs bound to the server and not yet
// released.
func (s *Server) InFlight() int64 { return s.refs.load() }

// Wait blocks until every pair has been released or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	return s.refs.wait(ctx)
}

// ListenAndServe starts an HTTP server on addr (or Config.Addr when addr is
// empty). It blocks until ctx is cancelled, then shuts down gracefully and
// waits for in-flight bodies to drain.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = s.cfg.Addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return s.Wait(shutdownCtx)
	})
	return g.Wait()
}

// retain is called by Bind. The first call freezes registration.
func (s *Server) retain() {
	s.frozen.Store(true)
	s.refs.retain()
	s.metrics.pairBound()
}

func (s *Server) release() {
	s.refs.release()
	s.metrics.pairReleased()
}

func (s *Server) mustBeOpen(op string) {
	if s.frozen.Load() {
		panic("relay: " + op + " called after the server started serving")
	}
}

// refCount counts live pairs and signals when the count returns to zero.
type refCount struct {
	mu   sync.Mutex
	n    int64
	idle chan struct{}
}

func (r *refCount) retain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	if r.n == 1 {
		r.idle = make(chan struct{})
	}
}

func (r *refCount) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.n == 0 {
		panic("relay: server handle released more often than retained")
	}
	r.n--
	if r.n == 0 {
		close(r.idle)
	}
}

func (r *refCount) load() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

func (r *refCount) wait(ctx context.Context) error {
	r.mu.Lock()
	if r.n == 0 {
		r.mu.Unlock()
		return nil
	}
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
