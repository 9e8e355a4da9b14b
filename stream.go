package relay

import (
	"context"
	"errors"
	"io"
)

// DefaultChunkSize is the chunk size used for sized bodies and for chunked
// bodies that do not declare their own.
const DefaultChunkSize = 4096

// maxEmptyReads is how many (0, nil) reads in a row end a stream with
// io.ErrNoProgress.
const maxEmptyReads = 100

// ChunkStream turns a reader into a pull-based sequence of chunks of at most
// a fixed size. It is single-pass: once it has returned io.EOF or an error it
// only ever returns io.EOF.
//
// A ChunkStream is driven by one goroutine and is not safe for concurrent use.
type ChunkStream struct {
	r       io.Reader
	size    int
	partial bool

	// pending is the error that ended the previous fill; it is reported
	// by the following call.
	pending error
	done    bool
}

// StreamOption configures a ChunkStream.
type StreamOption func(*ChunkStream)

// YieldPartial makes Next return as soon as a single read produced data
// instead of filling the whole chunk. Live sources such as event streams
// use it so each write reaches the client without waiting for a full chunk.
func YieldPartial() StreamOption {
	return func(s *ChunkStream) {
		s.partial = true
	}
}

// NewChunkStream returns a stream reading r in chunks of chunkSize bytes.
// Sizes below 1 use DefaultChunkSize. By default every chunk except the
// last is exactly chunkSize bytes long.
func NewChunkStream(r io.Reader, chunkSize int, opts ...StreamOption) *ChunkStream {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	s := &ChunkStream{r: r, size: chunkSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChunkSize returns the maximum length of a chunk.
func (s *ChunkStream) ChunkSize() int { return s.size }

// Next returns the next chunk. It returns io.EOF when the source is
// exhausted. Any other error ends the stream permanently; bytes read before
// the error are returned first and the error on the following call. A
// source that keeps returning no data and no error is retried a bounded
// number of times and then fails with io.ErrNoProgress.
//
// Each returned slice is freshly allocated and owned by the caller.
func (s *ChunkStream) Next(ctx context.Context) ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	if s.pending != nil {
		err := s.pending
		s.pending = nil
		s.done = true
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		s.done = true
		return nil, err
	}

	buf := make([]byte, s.size)
	n, empty := 0, 0
	for n < len(buf) {
		m, err := s.r.Read(buf[n:])
		n += m
		if err == nil && m == 0 {
			empty++
			err = ctx.Err()
			if err == nil && empty >= maxEmptyReads {
				err = io.ErrNoProgress
			}
		} else {
			empty = 0
		}
		if err != nil {
			if n == 0 {
				s.done = true
				return nil, err
			}
			if errors.Is(err, io.EOF) {
				err = io.EOF
			}
			s.pending = err
			break
		}
		if s.partial && m > 0 {
			break
		}
	}
	return buf[:n], nil
}

// Close ends the stream and closes the source when it is an io.Closer.
func (s *ChunkStream) Close() error {
	s.done = true
	s.pending = nil
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
