package relay

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/bjaus/relay/internal/http1"
)

// Emit writes a finalized response to w as an HTTP/1.1 message: status line,
// head fields, then the body. Sized bodies are written as is; chunked bodies
// get "Transfer-Encoding: chunked" and chunk framing. It returns the number
// of body bytes written and always releases the payload.
//
// When the body fails midway Emit stops without writing the terminating
// chunk, leaving the message visibly truncated.
func Emit(ctx context.Context, w io.Writer, head *Head, body *Payload) (n int64, err error) {
	defer func() {
		err = errors.Join(err, body.Close())
	}()

	bw := bufio.NewWriter(w)
	if err := http1.WriteStatusLine(bw, head.Status); err != nil {
		return 0, err
	}
	for _, f := range head.Header {
		if err := http1.WriteField(bw, f.Name, f.Value); err != nil {
			return 0, err
		}
	}
	if head.Chunked() {
		if err := http1.WriteField(bw, "Transfer-Encoding", "chunked"); err != nil {
			return 0, err
		}
	}
	if err := http1.EndHead(bw); err != nil {
		return 0, err
	}

	for {
		chunk, err := body.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, errors.Join(err, bw.Flush())
		}
		var m int
		if head.Chunked() {
			m, err = http1.WriteChunk(bw, chunk)
		} else {
			m, err = bw.Write(chunk)
		}
		n += int64(m)
		if err != nil {
			return n, err
		}
		if head.Chunked() {
			if err := bw.Flush(); err != nil {
				return n, err
			}
		}
	}

	if head.Chunked() {
		if err := http1.EndChunked(bw); err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}
