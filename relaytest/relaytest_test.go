package relaytest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/relay"
	"github.com/bjaus/relay/relaytest"
)

func TestClient(t *testing.T) {
	t.Parallel()

	s := relay.New()
	relay.Post(s, "/upper", func(_ context.Context, req *relay.Request) (*relay.Response, error) {
		var sb strings.Builder
		buf := make([]byte, 64)
		for {
			n, err := req.Body.Read(buf)
			sb.WriteString(strings.ToUpper(string(buf[:n])))
			if err != nil {
				break
			}
		}
		return relay.Text(req, http.StatusOK, sb.String()), nil
	})

	resp := relaytest.Post(t, relaytest.NewClient(t, s), "/upper", "text/plain", []byte("shout"))
	require.NoError(t, resp.Err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "SHOUT", string(resp.Body))
	assert.False(t, resp.Chunked)
}

func TestDrain(t *testing.T) {
	t.Parallel()

	s := relay.New(relay.WithChunkSize(2))
	p := relay.Bind(s)
	require.NoError(t, p.SetRequest(func(s *relay.Server) (*relay.Request, error) {
		return relay.NewRequest(s, httptest.NewRequest(http.MethodGet, "/", nil))
	}))
	p.SetResponse(context.Background(), func(_ context.Context, _ *relay.Server, req *relay.Request) *relay.Response {
		return relay.Text(req, http.StatusOK, "abcde")
	})
	_, body, err := p.Finalize()
	require.NoError(t, err)

	chunks, err := relaytest.Drain(t, body)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("ab"), []byte("cd"), []byte("e")}, chunks)
	assert.Zero(t, s.InFlight())
}
