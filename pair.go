package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/net/http/httpguts"
)

// Phase is the lifecycle stage of a Pair.
type Phase uint8

const (
	PhaseBound Phase = iota + 1
	PhaseRequested
	PhaseResponded
	PhaseStreaming
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseBound:
		return "bound"
	case PhaseRequested:
		return "requested"
	case PhaseResponded:
		return "responded"
	case PhaseStreaming:
		return "streaming"
	case PhaseClosed:
		return "closed"
	default:
		return "Phase(" + strconv.Itoa(int(p)) + ")"
	}
}

// Pair keeps a Response together with the Request it was built from and
// the Server both depend on, so the whole chain can be handed to the
// transport as one owned value.
//
// Each step runs exactly once and in order: Bind, SetRequest, SetResponse,
// Finalize. Calling a step out of order panics with a *PhaseError. Close
// releases whatever was built in reverse order: stream, response, request,
// server handle.
//
// A Pair is driven by one goroutine and is not safe for concurrent use.
type Pair struct {
	server   *Server
	request  *Request
	response *Response
	stream   *ChunkStream
	framing  Framing
	phase    Phase
}

// Bind creates a Pair holding a reference to s.
func Bind(s *Server) *Pair {
	s.retain()
	return &Pair{server: s, phase: PhaseBound}
}

// Phase reports the current phase.
func (p *Pair) Phase() Phase { return p.phase }

// Server returns the server the pair is bound to.
func (p *Pair) Server() *Server { return p.server }

// SetRequest builds the request from the server. An error from f is returned
// as is and leaves the pair bound, so no request ever exists.
func (p *Pair) SetRequest(f func(*Server) (*Request, error)) error {
	if p.phase != PhaseBound {
		violation("SetRequest", p.phase)
	}
	req, err := f(p.server)
	if err != nil {
		return err
	}
	if req == nil {
		panic("relay: SetRequest builder returned a nil request without an error")
	}
	if req.server != nil && req.server != p.server {
		panic("relay: SetRequest builder returned a request bound to another server")
	}
	req.server = p.server
	p.request = req
	p.phase = PhaseRequested
	return nil
}

// SetResponse runs f, usually a handler, against the stored request and
// keeps the response it returns. f may block for as long as the handler runs.
func (p *Pair) SetResponse(ctx context.Context, f func(context.Context, *Server, *Request) *Response) {
	if p.phase != PhaseRequested {
		violation("SetResponse", p.phase)
	}
	res := f(ctx, p.server, p.request)
	if res == nil {
		panic("relay: SetResponse builder returned a nil response")
	}
	if res.request == nil {
		res.request = p.request
	}
	if res.request != p.request {
		res.release() //nolint:errcheck,gosec // best-effort before panicking
		panic("relay: SetResponse builder returned a response for another request")
	}
	p.response = res
	p.phase = PhaseResponded
}

// Finalize copies the response status and headers into a Head and turns the
// body into a Payload for the transport. For a sized body the Head carries
// Content-Length; for a chunked body it carries none. A response without a
// body gets "Content-Length: 0" (unless its status forbids a body) and an
// empty Payload, and the pair is released immediately; a release hook
// failing then is logged, not returned.
//
// On error the pair is released and no Payload is returned.
func (p *Pair) Finalize() (*Head, *Payload, error) {
	if p.phase != PhaseResponded {
		violation("Finalize", p.phase)
	}
	res := p.response
	head := &Head{Status: res.Status, Header: res.Header.Clone(), ContentLength: 0}
	head.Header.Del("Content-Length")
	head.Header.Del("Transfer-Encoding")

	if err := validateHead(head); err != nil {
		return nil, nil, errors.Join(err, p.Close())
	}

	body := res.TakeBody()
	if body == nil {
		if bodyAllowed(head.Status) {
			head.Header.Set("Content-Length", "0")
		}
		p.server.metrics.responseFinalized("empty")
		if err := p.Close(); err != nil {
			p.server.logger.Debug("release after bodiless response failed", "status", head.Status, "err", err)
		}
		return head, &Payload{}, nil
	}

	var stream *ChunkStream
	switch body.Framing() {
	case FramingSized:
		if body.Size() < 0 {
			return nil, nil, errors.Join(fmt.Errorf("%w: %d", ErrBodyLength, body.Size()), body.Close(), p.Close())
		}
		head.ContentLength = body.Size()
		head.Header.Set("Content-Length", strconv.FormatInt(body.Size(), 10))
		stream = NewChunkStream(&exactReader{r: body.Reader(), remain: body.Size()}, p.server.cfg.ChunkSize)
	case FramingChunked:
		size := body.ChunkSize()
		if size == 0 {
			size = p.server.cfg.ChunkSize
		}
		if size < 1 || size > p.server.cfg.MaxChunkSize {
			return nil, nil, errors.Join(fmt.Errorf("%w: %d", ErrChunkSize, size), body.Close(), p.Close())
		}
		head.ContentLength = -1
		stream = NewChunkStream(body.Reader(), size, YieldPartial())
	default:
		panic(fmt.Sprintf("relay: unknown body framing %d", body.Framing()))
	}

	p.stream = stream
	p.framing = body.Framing()
	p.phase = PhaseStreaming
	p.server.metrics.responseFinalized(body.Framing().String())
	return head, &Payload{pair: p, contentLength: head.ContentLength, holding: true}, nil
}

// Close releases the stream, the response, the request and the server
// handle, in that order, for whichever of them exist. It is safe to call
// more than once.
func (p *Pair) Close() error {
	if p.phase == PhaseClosed {
		return nil
	}
	var errs []error
	if p.stream != nil {
		errs = append(errs, p.stream.Close())
		p.stream = nil
	}
	if p.response != nil {
		errs = append(errs, p.response.release())
		p.response = nil
	}
	if p.request != nil {
		errs = append(errs, p.request.release())
		p.request = nil
	}
	p.phase = PhaseClosed
	p.server.release()
	return errors.Join(errs...)
}

// bodyAllowed reports whether a response with status may carry a body and
// therefore a Content-Length (RFC 9110 section 8.6).
func bodyAllowed(status int) bool {
	switch {
	case status < 200, status == 204, status == 304:
		return false
	}
	return true
}

func validateHead(h *Head) error {
	if h.Status < 100 || h.Status > 999 {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, h.Status)
	}
	for _, f := range h.Header {
		if !httpguts.ValidHeaderFieldName(f.Name) {
			return fmt.Errorf("%w: name %q", ErrInvalidHeader, f.Name)
		}
		if !httpguts.ValidHeaderFieldValue(f.Value) {
			return fmt.Errorf("%w: value for %q", ErrInvalidHeader, f.Name)
		}
	}
	return nil
}
