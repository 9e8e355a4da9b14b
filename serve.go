package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
)

// serve returns the http.Handler that drives one Pair per request for rt:
// bind, build the request, run the handler, finalize, then drain the
// payload into the ResponseWriter.
func (s *Server) serve(rt *route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := Bind(s)
		// On the normal path the payload releases the pair first and this
		// is a no-op; it covers early returns and handler panics.
		defer p.Close() //nolint:errcheck // release errors were logged by the payload or are moot

		err := p.SetRequest(func(s *Server) (*Request, error) {
			return newRequest(s, w, r, rt.bodyLimit)
		})
		if err != nil {
			s.metrics.requestRejected()
			s.logger.DebugContext(r.Context(), "request rejected", "route", rt.label(), "err", err)
			writeProblem(w, problemFor(err))
			return
		}

		p.SetResponse(r.Context(), func(ctx context.Context, s *Server, req *Request) *Response {
			return s.dispatch(ctx, rt, req)
		})

		head, body, err := p.Finalize()
		if err != nil {
			s.logger.ErrorContext(r.Context(), "finalize response", "route", rt.label(), "err", err)
			writeProblem(w, problemFor(Error(http.StatusInternalServerError, "response could not be encoded")))
			return
		}
		defer func() {
			if err := body.Close(); err != nil {
				s.logger.DebugContext(r.Context(), "release pair", "route", rt.label(), "err", err)
			}
		}()

		s.transmit(w, r, rt, head, body)
	})
}

// dispatch runs the route handler and maps its outcome to a Response.
func (s *Server) dispatch(ctx context.Context, rt *route, req *Request) *Response {
	res, err := rt.handler(ctx, req)
	if err != nil {
		if res != nil {
			res.release() //nolint:errcheck,gosec // superseded by the error response
		}
		return s.errorResponse(rt, req, err)
	}
	if res == nil {
		return req.Respond(http.StatusNoContent)
	}
	if s.compressor != nil {
		return s.compressor.apply(req, res)
	}
	return res
}

// errorResponse converts a handler error into a response built through the
// pair, so it is framed like any other.
func (s *Server) errorResponse(rt *route, req *Request, err error) *Response {
	status := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(req.Context(), "handler failed", "route", rt.label(), "status", status, "err", err)
	}
	if s.errorHandler != nil {
		if res := s.errorHandler(req, err); res != nil {
			return res
		}
	}

	b, merr := json.Marshal(problemFor(err))
	if merr != nil {
		return Text(req, status, http.StatusText(status))
	}
	return Bytes(req, status, "application/problem+json", b)
}

// transmit copies head onto w and writes the payload chunk by chunk. Chunked
// bodies are flushed after every chunk. Once headers are out a failing body,
// including one ended by the request deadline, can only be reported by
// aborting the connection.
func (s *Server) transmit(w http.ResponseWriter, r *http.Request, rt *route, head *Head, body *Payload) {
	h := w.Header()
	for _, f := range head.Header {
		h.Add(f.Name, f.Value)
	}
	w.WriteHeader(head.Status)
	if body.Empty() {
		return
	}

	ctx := r.Context()
	poll := ctx
	if ctx.Err() != nil {
		// Built after the context ended, typically the error response for a
		// timed out handler. A gone client fails the writes instead.
		poll = context.WithoutCancel(ctx)
	}
	rc := http.NewResponseController(w)
	for {
		chunk, err := body.Next(poll)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			// A cut short body always aborts; a plain return would let
			// net/http terminate it as if complete.
			if poll.Err() != nil {
				s.logger.DebugContext(ctx, "response body ended by context",
					"route", rt.label(),
					"framing", framingOf(head),
					"err", err,
				)
			} else {
				s.logger.WarnContext(ctx, "response body failed after headers were sent",
					"route", rt.label(),
					"framing", framingOf(head),
					"err", err,
				)
			}
			panic(http.ErrAbortHandler)
		}
		if _, err := w.Write(chunk); err != nil {
			s.logger.DebugContext(ctx, "write response body", "route", rt.label(), "err", err)
			return
		}
		if head.Chunked() {
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return
			}
		}
	}
}

func framingOf(head *Head) string {
	if head.Chunked() {
		return FramingChunked.String()
	}
	return FramingSized.String()
}

// writeProblem writes an RFC 9457 problem details response directly, for
// failures that happen before a Request exists.
func writeProblem(w http.ResponseWriter, pd *ProblemDetail) {
	b, err := json.Marshal(pd)
	if err != nil {
		http.Error(w, http.StatusText(pd.Status), pd.Status)
		return
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(pd.Status)
	//nolint:errcheck,gosec // best-effort after WriteHeader
	w.Write(b)
}
