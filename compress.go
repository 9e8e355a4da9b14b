package relay

import (
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// CompressConfig configures response compression.
type CompressConfig struct {
	Level   int      // gzip level (1-9, default: 5)
	MinSize int64    // minimum sized body to compress (default: 1024)
	Types   []string // content types to compress (default: application/json, text/*)
}

// WithCompression gzip-compresses response bodies for clients that accept
// it. A compressed body has no length known in advance, so it is always
// sent with chunked framing. Event streams and bodies that already carry a
// Content-Encoding are left alone.
//
// Releasing a compressed response waits for the compressor to stop reading
// a source that is an io.Closer, so that source's Close must unblock a Read
// in progress (as closing a pipe or a connection does).
func WithCompression(cfg ...CompressConfig) ServerOption {
	c := CompressConfig{
		Level:   5,
		MinSize: 1024,
		Types:   []string{"application/json", "text/"},
	}
	if len(cfg) > 0 {
		if cfg[0].Level > 0 {
			c.Level = cfg[0].Level
		}
		if cfg[0].MinSize > 0 {
			c.MinSize = cfg[0].MinSize
		}
		if len(cfg[0].Types) > 0 {
			c.Types = cfg[0].Types
		}
	}

	cp := &compressor{cfg: c}
	cp.pool.New = func() any {
		gz, _ := gzip.NewWriterLevel(io.Discard, c.Level) //nolint:errcheck // level is pre-validated
		return gz
	}
	return func(s *Server) {
		s.compressor = cp
	}
}

type compressor struct {
	cfg  CompressConfig
	pool sync.Pool
}

// apply swaps the body of res for a gzip stream over it when the request
// and the response both allow it.
func (c *compressor) apply(req *Request, res *Response) *Response {
	body := res.Body()
	if body == nil || !strings.Contains(req.Header.Get("Accept-Encoding"), "gzip") {
		return res
	}
	if !c.shouldCompress(res) {
		return res
	}
	if body.Framing() == FramingSized && body.Size() < c.cfg.MinSize {
		return res
	}

	res.Header.Add("Vary", "Accept-Encoding")
	res.Header.Set("Content-Encoding", "gzip")
	res.body = nil
	return res.SetChunkedBody(c.stream(body), body.ChunkSize())
}

func (c *compressor) shouldCompress(res *Response) bool {
	ct := res.Header.Get("Content-Type")
	if strings.Contains(ct, "event-stream") {
		return false
	}
	if res.Header.Get("Content-Encoding") != "" {
		return false
	}
	for _, t := range c.cfg.Types {
		if strings.Contains(ct, t) {
			return true
		}
	}
	return false
}

// stream compresses src on a goroutine into the returned reader.
func (c *compressor) stream(src *Body) io.ReadCloser {
	pr, pw := io.Pipe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		gz := c.pool.Get().(*gzip.Writer) //nolint:errcheck,forcetypeassert // pool.New always returns *gzip.Writer
		gz.Reset(pw)
		defer c.pool.Put(gz)

		r := src.Reader()
		if src.Framing() == FramingSized {
			r = &exactReader{r: r, remain: src.Size()}
		}
		if _, err := io.Copy(gz, r); err != nil {
			pw.CloseWithError(err) //nolint:errcheck,gosec // never fails
			return
		}
		pw.CloseWithError(gz.Close()) //nolint:errcheck,gosec // never fails
	}()

	return &gzipReader{PipeReader: pr, src: src, done: done}
}

// gzipReader closes the source and, when the source is an io.Closer, waits
// for the compressing goroutine so the source is no longer read once the
// response has been released. A source without Close cannot be interrupted,
// so the goroutine is left to finish its current Read on its own.
type gzipReader struct {
	*io.PipeReader
	src  *Body
	done chan struct{}
	once sync.Once
	err  error
}

func (g *gzipReader) Close() error {
	g.once.Do(func() {
		g.PipeReader.Close() //nolint:errcheck,gosec // never fails
		g.err = g.src.Close()
		if _, ok := g.src.Reader().(io.Closer); ok {
			<-g.done
		}
	})
	return g.err
}
