package relay

import (
	"fmt"
	"io"
)

// Framing describes how a body's length is communicated to the client.
type Framing uint8

const (
	// FramingSized bodies declare their length up front via Content-Length.
	FramingSized Framing = iota + 1
	// FramingChunked bodies have no declared length and are sent with
	// chunked transfer encoding.
	FramingChunked
)

func (f Framing) String() string {
	switch f {
	case FramingSized:
		return "sized"
	case FramingChunked:
		return "chunked"
	default:
		return fmt.Sprintf("Framing(%d)", uint8(f))
	}
}

// Body is a response body source. It is consumed at most once.
type Body struct {
	reader    io.Reader
	framing   Framing
	size      int64
	chunkSize int
}

// SizedBody returns a body of exactly size bytes read from r.
func SizedBody(r io.Reader, size int64) *Body {
	return &Body{reader: r, framing: FramingSized, size: size}
}

// ChunkedBody returns a body of unknown length read from r in chunks of
// chunkSize bytes. A chunkSize of 0 uses the server's configured size.
func ChunkedBody(r io.Reader, chunkSize int) *Body {
	return &Body{reader: r, framing: FramingChunked, size: -1, chunkSize: chunkSize}
}

// Framing reports whether the body is sized or chunked.
func (b *Body) Framing() Framing { return b.framing }

// Size returns the declared length, or -1 for chunked bodies.
func (b *Body) Size() int64 { return b.size }

// ChunkSize returns the requested chunk size of a chunked body.
func (b *Body) ChunkSize() int { return b.chunkSize }

// Reader returns the underlying source.
func (b *Body) Reader() io.Reader { return b.reader }

// Close closes the source when it is an io.Closer.
func (b *Body) Close() error {
	if c, ok := b.reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// exactReader yields exactly remain bytes from r and reports a short
// source as io.ErrUnexpectedEOF.
type exactReader struct {
	r      io.Reader
	remain int64
}

func (e *exactReader) Read(p []byte) (int, error) {
	if e.remain <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > e.remain {
		p = p[:e.remain]
	}
	n, err := e.r.Read(p)
	e.remain -= int64(n)
	if err == io.EOF {
		if e.remain > 0 {
			return n, io.ErrUnexpectedEOF
		}
		return n, io.EOF
	}
	return n, err
}

func (e *exactReader) Close() error {
	if c, ok := e.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
