// Command sample runs a small relay server that shows each body framing.
//
// Run:
//
//	go run ./cmd/sample
//	go run ./cmd/sample -config sample.yaml    restarts when the file changes
//
// Then explore:
//
//	GET  http://localhost:8080/hello          sized text body
//	POST http://localhost:8080/echo           request body streamed back chunked
//	GET  http://localhost:8080/count?n=5      numbers written through a pipe
//	GET  http://localhost:8080/visits         managed server state
//	GET  http://localhost:8080/events         server-sent events
//	GET  http://localhost:8080/fail           body that fails midway
//	GET  http://localhost:8080/metrics        Prometheus metrics
//	GET  http://localhost:8080/debug/pprof/      runtime profiles
//
// Print one response in HTTP/1.1 wire format without starting a server:
//
//	go run ./cmd/sample -dump /count?n=3
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bjaus/relay"
)

// visits is managed server state shared by every request.
type visits struct {
	n atomic.Int64
}

func main() {
	configFlag := flag.String("config", "", "YAML config file; the server restarts when it changes")
	dumpFlag := flag.String("dump", "", "Print the response for this GET path to stdout and exit")
	flag.Parse()

	if *dumpFlag != "" {
		cfg, logger, err := setup(*configFlag)
		if err != nil {
			slog.Error("invalid config", "err", err)
			os.Exit(1)
		}
		srv := newServer(cfg, logger, prometheus.NewRegistry())
		if err := dump(srv, *dumpFlag, os.Stdout); err != nil {
			slog.Error("dump failed", "err", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFlag); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// run serves until ctx is done. A server is read-only once it has served a
// request, so a changed config file is applied by draining the running
// server and starting a new one.
func run(ctx context.Context, configPath string) error {
	for {
		cfg, logger, err := setup(configPath)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		srv := newServer(cfg, logger, reg)

		runCtx, cancel := context.WithCancel(ctx)
		changed := make(chan struct{})
		if configPath != "" {
			if err := watchConfig(runCtx, configPath, logger, changed); err != nil {
				cancel()
				return err
			}
		}
		go func() {
			select {
			case <-changed:
				cancel()
			case <-runCtx.Done():
			}
		}()

		logger.Info("starting server", "addr", cfg.Addr)
		err = srv.ListenAndServe(runCtx, "")
		cancel()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		logger.Info("config changed, restarting", "path", configPath)
	}
}

// setup loads the config (defaults when path is empty) and installs the
// logger it asks for as the default.
func setup(path string) (relay.Config, *slog.Logger, error) {
	cfg := relay.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = relay.LoadConfig(path); err != nil {
			return relay.Config{}, nil, err
		}
	}
	level, err := cfg.Level()
	if err != nil {
		return relay.Config{}, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// watchConfig closes changed the first time path is written or created.
// The parent directory is watched because editors often replace the file
// instead of writing it in place.
func watchConfig(ctx context.Context, path string, logger *slog.Logger, changed chan<- struct{}) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("watch config: %w", err)
	}

	go func() {
		defer w.Close() //nolint:errcheck // shutting down
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				close(changed)
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher", "err", err)
			}
		}
	}()
	return nil
}

func newServer(cfg relay.Config, logger *slog.Logger, reg *prometheus.Registry) *relay.Server {
	srv := relay.New(
		relay.WithConfig(cfg),
		relay.WithLogger(logger),
		relay.WithMetrics(relay.NewMetrics(reg)),
		relay.WithCompression(),
	)
	srv.Use(relay.Recovery(logger), relay.RequestID(), relay.Logger(logger))
	relay.Manage(srv, &visits{})

	relay.Get(srv, "/hello", handleHello)
	relay.Post(srv, "/echo", handleEcho, relay.WithBodyLimit(1<<20))
	relay.Get(srv, "/count", handleCount)
	relay.Get(srv, "/visits", handleVisits)
	relay.Get(srv, "/events", handleEvents)
	relay.Get(srv, "/fail", handleFail)
	relay.Raw(srv, http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	relay.Pprof(srv, "")
	return srv
}

func handleHello(_ context.Context, req *relay.Request) (*relay.Response, error) {
	name := req.Query().Get("name")
	if name == "" {
		name = "world"
	}
	return relay.Text(req, http.StatusOK, "Hello, "+name+"!\n"), nil
}

// handleEcho hands the request's own body to the response. The pair keeps
// the request open until the echo has been sent.
func handleEcho(_ context.Context, req *relay.Request) (*relay.Response, error) {
	ct := req.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return relay.Stream(req, http.StatusOK, ct, req.Body), nil
}

func handleCount(ctx context.Context, req *relay.Request) (*relay.Response, error) {
	n := 10
	if s := req.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 || v > 10000 {
			return nil, relay.Errorf(http.StatusBadRequest, "n must be an integer between 0 and 10000, got %q", s)
		}
		n = v
	}

	pr, pw := io.Pipe()
	go func() {
		for i := 1; i <= n; i++ {
			if ctx.Err() != nil {
				pw.CloseWithError(ctx.Err()) //nolint:errcheck,gosec // never fails
				return
			}
			if _, err := fmt.Fprintf(pw, "%d\n", i); err != nil {
				return
			}
		}
		pw.Close() //nolint:errcheck,gosec // never fails
	}()
	return relay.Stream(req, http.StatusOK, "text/plain; charset=utf-8", pr), nil
}

func handleVisits(_ context.Context, req *relay.Request) (*relay.Response, error) {
	v := relay.MustState[*visits](req)
	return relay.Encode(req, http.StatusOK, map[string]int64{"visits": v.n.Add(1)})
}

func handleEvents(ctx context.Context, req *relay.Request) (*relay.Response, error) {
	events := make(chan relay.SSEEvent)
	go func() {
		defer close(events)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for i := 1; i <= 5; i++ {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				ev := relay.SSEEvent{
					ID:    strconv.Itoa(i),
					Event: "tick",
					Data:  map[string]string{"time": t.Format(time.RFC3339)},
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return relay.SSE(req, events), nil
}

var errSourceLost = errors.New("source went away")

// handleFail streams a body whose source fails after a few bytes. The
// client sees the connection cut without a terminating chunk.
func handleFail(_ context.Context, req *relay.Request) (*relay.Response, error) {
	r := io.MultiReader(
		io.LimitReader(infinite('x'), 16),
		errReader{err: errSourceLost},
	)
	return relay.Stream(req, http.StatusOK, "text/plain", r), nil
}

type infinite byte

func (b infinite) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(b)
	}
	return len(p), nil
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// dump drives one pair for path and writes the response in wire format.
func dump(srv *relay.Server, path string, w io.Writer) error {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	handlers := map[string]relay.HandlerFunc{
		"/hello":  handleHello,
		"/count":  handleCount,
		"/visits": handleVisits,
		"/fail":   handleFail,
	}
	h, ok := handlers[r.URL.Path]
	if !ok {
		return fmt.Errorf("no dumpable handler for %q", r.URL.Path)
	}

	p := relay.Bind(srv)
	if err := p.SetRequest(func(s *relay.Server) (*relay.Request, error) {
		return relay.NewRequest(s, r)
	}); err != nil {
		return errors.Join(err, p.Close())
	}
	p.SetResponse(r.Context(), func(ctx context.Context, _ *relay.Server, req *relay.Request) *relay.Response {
		res, err := h(ctx, req)
		if err != nil {
			return relay.Text(req, relay.ErrorStatus(err), err.Error()+"\n")
		}
		return res
	})
	head, body, err := p.Finalize()
	if err != nil {
		return err
	}
	_, err = relay.Emit(r.Context(), w, head, body)
	return err
}
