package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Head is the owned status line and header set of a finalized response.
type Head struct {
	Status int
	Header Header
	// ContentLength is the declared body length, or -1 when the body is
	// sent with chunked framing.
	ContentLength int64
}

// Chunked reports whether the body has no declared length.
func (h *Head) Chunked() bool { return h.ContentLength < 0 }

// Payload is the response body handed to the transport. It is either empty
// or holds the Pair whose stream it drains, keeping the request and
// response alive until the body is exhausted or closed.
//
// A Payload is driven by one goroutine and is not safe for concurrent use.
type Payload struct {
	pair          *Pair
	contentLength int64
	// holding is fixed at construction; pair is cleared on release.
	holding       bool
}

// Empty reports whether the payload was built without a body. It keeps
// reporting the same after a holding payload has been drained or closed.
func (b *Payload) Empty() bool { return !b.holding }

// ContentLength returns the declared body length, or -1 for chunked bodies.
func (b *Payload) ContentLength() int64 { return b.contentLength }

// Next returns the next chunk of the body. It returns io.EOF once the body
// is exhausted. When the body source fails, Next returns that error once;
// in both cases the pair is released and later calls return io.EOF.
func (b *Payload) Next(ctx context.Context) ([]byte, error) {
	if b.pair == nil {
		return nil, io.EOF
	}
	p := b.pair
	if p.phase != PhaseStreaming || p.stream == nil {
		panic(fmt.Sprintf("relay: payload polled with pair in phase %s", p.phase))
	}

	chunk, err := p.stream.Next(ctx)
	if err == nil {
		p.server.metrics.chunkSent(p.framing, len(chunk))
		return chunk, nil
	}
	if !errors.Is(err, io.EOF) {
		p.server.metrics.streamFailed()
	}
	if cerr := b.Close(); cerr != nil {
		p.server.logger.DebugContext(ctx, "release after body end failed", "err", cerr)
	}
	return nil, err
}

// Trailers returns the trailing header fields, which are never produced.
func (b *Payload) Trailers() Header { return nil }

// Close releases the pair. It is safe to call more than once.
func (b *Payload) Close() error {
	if b.pair == nil {
		return nil
	}
	p := b.pair
	b.pair = nil
	return p.Close()
}
