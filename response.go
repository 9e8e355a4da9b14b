package relay

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Response is a handler's answer to a Request. It may reference data owned
// by the request (its body reader, for instance) and is released before it.
type Response struct {
	Status int
	Header Header

	request  *Request
	body     *Body
	taken    bool
	deferred []func() error
}

// Request returns the request the response was built for.
func (res *Response) Request() *Request { return res.request }

// SetBody replaces the body. A previous body that was never taken is closed.
// Setting a body after it was taken by Finalize panics.
func (res *Response) SetBody(b *Body) *Response {
	if res.taken {
		panic("relay: SetBody called after the body was taken")
	}
	if res.body != nil && res.body != b {
		res.body.Close() //nolint:errcheck,gosec // replaced body is discarded
	}
	res.body = b
	return res
}

// SetSizedBody sets a body of exactly size bytes read from r.
func (res *Response) SetSizedBody(r io.Reader, size int64) *Response {
	return res.SetBody(SizedBody(r, size))
}

// SetChunkedBody sets a body of unknown length read from r.
func (res *Response) SetChunkedBody(r io.Reader, chunkSize int) *Response {
	return res.SetBody(ChunkedBody(r, chunkSize))
}

// Body returns the body without taking it, or nil.
func (res *Response) Body() *Body { return res.body }

// TakeBody removes and returns the body. It returns nil when there is no
// body or it was already taken.
func (res *Response) TakeBody() *Body {
	b := res.body
	res.body = nil
	res.taken = true
	return b
}

// SetCookie adds a Set-Cookie header. Invalid cookies are dropped silently.
func (res *Response) SetCookie(c *http.Cookie) {
	if v := c.String(); v != "" {
		res.Header.Add("Set-Cookie", v)
	}
}

// Defer registers fn to run when the response is released. Deferred
// functions run in reverse order of registration, after an untaken body is
// closed.
func (res *Response) Defer(fn func() error) {
	res.deferred = append(res.deferred, fn)
}

func (res *Response) release() error {
	var errs []error
	if res.body != nil {
		errs = append(errs, res.body.Close())
		res.body = nil
	}
	for i := len(res.deferred) - 1; i >= 0; i-- {
		errs = append(errs, res.deferred[i]())
	}
	res.deferred = nil
	return errors.Join(errs...)
}

// Text returns a response with a plain-text sized body.
func Text(req *Request, status int, s string) *Response {
	res := req.Respond(status)
	res.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return res.SetSizedBody(strings.NewReader(s), int64(len(s)))
}

// Bytes returns a response with a sized body holding b.
func Bytes(req *Request, status int, contentType string, b []byte) *Response {
	res := req.Respond(status)
	if contentType != "" {
		res.Header.Set("Content-Type", contentType)
	}
	return res.SetSizedBody(bytes.NewReader(b), int64(len(b)))
}

// Stream returns a response whose body is read from r with chunked framing.
// The reader is closed with the response when it is an io.Closer. A status
// of 0 means 200.
func Stream(req *Request, status int, contentType string, r io.Reader) *Response {
	if status == 0 {
		status = http.StatusOK
	}
	res := req.Respond(status)
	if contentType != "" {
		res.Header.Set("Content-Type", contentType)
	}
	if r == nil {
		return res
	}
	return res.SetChunkedBody(r, 0)
}
