package relay_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/relay"
)

func TestEmit(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		build func(req *relay.Request) *relay.Response
		want  string
	}{
		"sized body": {
			build: func(req *relay.Request) *relay.Response {
				return relay.Text(req, http.StatusOK, "Hello, world!")
			},
			want: "HTTP/1.1 200 OK\r\n" +
				"Content-Type: text/plain; charset=utf-8\r\n" +
				"Content-Length: 13\r\n" +
				"\r\n" +
				"Hello, world!",
		},
		"chunked body": {
			build: func(req *relay.Request) *relay.Response {
				return relay.Stream(req, http.StatusOK, "", strings.NewReader("Hello, world!"))
			},
			want: "HTTP/1.1 200 OK\r\n" +
				"Transfer-Encoding: chunked\r\n" +
				"\r\n" +
				"4\r\nHell\r\n" +
				"4\r\no, w\r\n" +
				"4\r\norld\r\n" +
				"1\r\n!\r\n" +
				"0\r\n\r\n",
		},
		"no body": {
			build: func(req *relay.Request) *relay.Response {
				res := req.Respond(http.StatusCreated)
				res.Header.Set("Location", "/things/1")
				return res
			},
			want: "HTTP/1.1 201 Created\r\n" +
				"Location: /things/1\r\n" +
				"Content-Length: 0\r\n" +
				"\r\n",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := relay.New(relay.WithChunkSize(4))
			p := responded(t, s, func(req *relay.Request) *relay.Response {
				return tc.build(req)
			})
			head, body, err := p.Finalize()
			require.NoError(t, err)

			var buf bytes.Buffer
			_, err = relay.Emit(context.Background(), &buf, head, body)
			require.NoError(t, err)
			assert.Equal(t, tc.want, buf.String())
			assert.Zero(t, s.InFlight())
		})
	}
}

func TestEmit_failed_body_has_no_terminator(t *testing.T) {
	t.Parallel()

	s := relay.New()
	p := responded(t, s, func(req *relay.Request) *relay.Response {
		src := io.MultiReader(strings.NewReader("12345"), iotest.ErrReader(errBoom))
		return relay.Stream(req, http.StatusOK, "", src)
	})
	head, body, err := p.Finalize()
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := relay.Emit(context.Background(), &buf, head, body)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, int64(5), n)
	assert.True(t, strings.HasSuffix(buf.String(), "5\r\n12345\r\n"))
	assert.NotContains(t, buf.String(), "0\r\n\r\n")
	assert.Zero(t, s.InFlight())
}
