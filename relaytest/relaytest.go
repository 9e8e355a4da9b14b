// Package relaytest provides test helpers for servers built with relay.
package relaytest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bjaus/relay"
)

// Client wraps an httptest.Server for convenient testing.
type Client struct {
	Server *httptest.Server
}

// NewClient starts s on a test server that is closed when the test ends.
func NewClient(t testing.TB, s *relay.Server) *Client {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return &Client{Server: srv}
}

// Response holds a fully read response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	// Chunked reports whether the body was sent with chunked transfer
	// encoding.
	Chunked bool
	// Err is the error that interrupted reading the body, if any.
	Err error
	Raw *http.Response
}

// Get sends a GET request.
func Get(t testing.TB, c *Client, path string) *Response {
	t.Helper()
	return Do(t, c, http.MethodGet, path, nil, nil)
}

// Post sends a POST request with body and the given Content-Type.
func Post(t testing.TB, c *Client, path, contentType string, body []byte) *Response {
	t.Helper()
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return Do(t, c, http.MethodPost, path, h, body)
}

// Do sends a request and reads the whole response body. A body that fails
// midway is reported in Response.Err, not as a test failure.
func Do(t testing.TB, c *Client, method, path string, header http.Header, body []byte) *Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, c.Server.URL+path, reqBody)
	if err != nil {
		t.Fatalf("relaytest: create request: %v", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("relaytest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("relaytest: close body: %v", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	chunked := len(resp.TransferEncoding) > 0 && resp.TransferEncoding[0] == "chunked"
	return &Response{
		Status:  resp.StatusCode,
		Header:  resp.Header,
		Body:    data,
		Chunked: chunked,
		Err:     err,
		Raw:     resp,
	}
}

// Drain polls body until it ends and returns every chunk. The error that
// ended the body is returned unless it was io.EOF.
func Drain(t testing.TB, body *relay.Payload) ([][]byte, error) {
	t.Helper()
	var chunks [][]byte
	for {
		chunk, err := body.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
}
