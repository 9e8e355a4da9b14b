package relay

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

// SSEEvent is a single server-sent event.
type SSEEvent struct {
	// Event is the event type (optional). Maps to the "event:" field.
	Event string
	// Data is the event payload. If it's a struct/map, it will be JSON-encoded.
	Data any
	// ID is the event ID (optional). Maps to the "id:" field.
	ID string
}

// SSE returns a text/event-stream response whose chunked body is fed from
// events. The stream ends when events is closed or the request context is
// done; releasing the response stops the feeding goroutine.
func SSE(req *Request, events <-chan SSEEvent) *Response {
	pr, pw := io.Pipe()
	done := make(chan struct{})
	stop := sync.OnceFunc(func() { close(done) })
	ctx := req.Context()

	go func() {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					pw.Close() //nolint:errcheck,gosec // PipeWriter.Close never fails
					return
				}
				if err := writeSSEEvent(pw, ev); err != nil {
					return
				}
			case <-ctx.Done():
				pw.CloseWithError(ctx.Err()) //nolint:errcheck,gosec // never fails
				return
			case <-done:
				return
			}
		}
	}()

	res := req.Respond(http.StatusOK)
	res.Header.Set("Content-Type", "text/event-stream")
	res.Header.Set("Cache-Control", "no-cache")
	return res.SetChunkedBody(&sseReader{PipeReader: pr, stop: stop}, 0)
}

// sseReader stops the feeding goroutine when the body is closed.
type sseReader struct {
	*io.PipeReader
	stop func()
}

func (r *sseReader) Close() error {
	r.stop()
	return r.PipeReader.Close()
}

// writeSSEEvent writes ev as one pipe write, so it reaches the stream as a
// single chunk.
func writeSSEEvent(w io.Writer, ev SSEEvent) error {
	var b strings.Builder
	if ev.ID != "" {
		writeSSEField(&b, "id", ev.ID)
	}
	if ev.Event != "" {
		writeSSEField(&b, "event", ev.Event)
	}

	switch v := ev.Data.(type) {
	case string:
		writeSSEField(&b, "data", v)
	case []byte:
		writeSSEField(&b, "data", string(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			writeSSEField(&b, "data", err.Error())
		} else {
			writeSSEField(&b, "data", string(data))
		}
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// writeSSEField writes one field; multi-line values become several data lines.
func writeSSEField(b *strings.Builder, name, value string) {
	for line := range strings.SplitSeq(value, "\n") {
		fmt.Fprintf(b, "%s: %s\n", name, line)
	}
}
