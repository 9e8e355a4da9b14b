// Package http1 writes the HTTP/1.1 framing of a response: the status line,
// header fields and chunked transfer coding.
package http1

import (
	"bufio"
	"fmt"
	"net/http"
	"strconv"
)

// WriteStatusLine writes "HTTP/1.1 <code> <reason>\r\n". An unknown code is
// written without a reason phrase.
func WriteStatusLine(bw *bufio.Writer, status int) error {
	_, err := fmt.Fprintf(bw, "HTTP/1.1 %03d %s\r\n", status, http.StatusText(status))
	return err
}

// WriteField writes one header field. CR, LF and other control bytes except
// HTAB are dropped from the value.
func WriteField(bw *bufio.Writer, name, value string) error {
	if _, err := bw.WriteString(name); err != nil {
		return err
	}
	if _, err := bw.WriteString(": "); err != nil {
		return err
	}
	if _, err := bw.WriteString(sanitizeHeaderValue(value)); err != nil {
		return err
	}
	_, err := bw.WriteString("\r\n")
	return err
}

// EndHead writes the blank line that ends the header section.
func EndHead(bw *bufio.Writer) error {
	_, err := bw.WriteString("\r\n")
	return err
}

// WriteChunk writes one chunk of a chunked body. Empty chunks are skipped
// because a zero-size chunk terminates the body.
func WriteChunk(bw *bufio.Writer, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := bw.WriteString(strconv.FormatInt(int64(len(p)), 16)); err != nil {
		return 0, err
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return 0, err
	}
	if _, err := bw.Write(p); err != nil {
		return 0, err
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return 0, err
	}
	return len(p), nil
}

// EndChunked writes the terminating zero-length chunk with no trailers.
func EndChunked(bw *bufio.Writer) error {
	_, err := bw.WriteString("0\r\n\r\n")
	return err
}

func sanitizeHeaderValue(v string) string {
	clean := true
	for i := 0; i < len(v); i++ {
		if c := v[i]; (c < 0x20 && c != '\t') || c == 0x7f {
			clean = false
			break
		}
	}
	if clean {
		return v
	}
	b := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < 0x20 && c != '\t') || c == 0x7f {
			continue
		}
		b = append(b, c)
	}
	return string(b)
}
