package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
)

// Request is the request-scoped value a handler sees. It borrows the Server
// it was built from and owns its header, URL and body. It is released with
// its Pair, after the Response built from it.
type Request struct {
	Method        string
	URL           *url.URL
	Proto         string
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
	RemoteAddr    string

	ctx      context.Context
	server   *Server
	raw      *http.Request
	deferred []func() error
}

// NewRequest builds a Request from an incoming *http.Request using the
// server's configured body limit.
func NewRequest(s *Server, r *http.Request) (*Request, error) {
	return newRequest(s, nil, r, s.cfg.BodyLimit)
}

// newRequest validates r and wraps its body so that reading past limit
// fails. A declared Content-Length above limit is rejected up front.
func newRequest(s *Server, w http.ResponseWriter, r *http.Request, limit int64) (*Request, error) {
	if r == nil || r.URL == nil || r.Method == "" {
		return nil, &HTTPError{Status: http.StatusBadRequest, Message: "malformed request line", Err: ErrMalformedRequest}
	}
	if r.ContentLength < -1 {
		return nil, Errorf(http.StatusBadRequest, "%w: negative content length %d", ErrMalformedRequest, r.ContentLength)
	}
	if limit > 0 && r.ContentLength > limit {
		return nil, Errorf(http.StatusRequestEntityTooLarge, "%w: %d bytes exceeds limit of %d", ErrRequestTooLarge, r.ContentLength, limit)
	}

	body := r.Body
	if body == nil {
		body = http.NoBody
	}
	if limit > 0 {
		body = &limitedBody{ReadCloser: http.MaxBytesReader(w, body, limit)}
	}

	return &Request{
		Method:        r.Method,
		URL:           r.URL,
		Proto:         r.Proto,
		Header:        r.Header,
		Body:          body,
		ContentLength: r.ContentLength,
		RemoteAddr:    r.RemoteAddr,
		ctx:           r.Context(),
		server:        s,
		raw:           r,
	}, nil
}

// Context returns the request context.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// Server returns the server the request was built from.
func (r *Request) Server() *Server { return r.server }

// Query returns the parsed URL query.
func (r *Request) Query() url.Values { return r.URL.Query() }

// PathValue returns the value of the named path wildcard of the matched route.
func (r *Request) PathValue(name string) string {
	if r.raw == nil {
		return ""
	}
	return r.raw.PathValue(name)
}

// ID returns the request ID assigned by the RequestID middleware, if any.
func (r *Request) ID() string { return RequestIDFrom(r.Context()) }

// Raw returns the underlying *http.Request, an escape hatch for anything the
// Request does not expose.
func (r *Request) Raw() *http.Request { return r.raw }

// Defer registers fn to run when the request is released. Deferred
// functions run in reverse order of registration, before the body is closed.
func (r *Request) Defer(fn func() error) {
	r.deferred = append(r.deferred, fn)
}

// Respond starts a response to r with the given status.
func (r *Request) Respond(status int) *Response {
	return &Response{Status: status, request: r}
}

func (r *Request) release() error {
	var errs []error
	for i := len(r.deferred) - 1; i >= 0; i-- {
		errs = append(errs, r.deferred[i]())
	}
	r.deferred = nil
	if r.Body != nil {
		errs = append(errs, r.Body.Close())
	}
	return errors.Join(errs...)
}

// limitedBody reports an oversized body as a 413 HTTPError.
type limitedBody struct {
	io.ReadCloser
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return n, Errorf(http.StatusRequestEntityTooLarge, "%w: limit is %d bytes", ErrRequestTooLarge, mbe.Limit)
	}
	return n, err
}
