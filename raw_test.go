package relay_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/relay"
	"github.com/bjaus/relay/relaytest"
)

func TestRaw_handler(t *testing.T) {
	t.Parallel()

	s := relay.New(relay.WithLogger(quietLogger()))
	relay.Raw(s, http.MethodGet, "/custom", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("custom response"))
		assert.NoError(t, err)
	}))

	resp := relaytest.Get(t, relaytest.NewClient(t, s), "/custom")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "custom response", string(resp.Body))
	assert.Zero(t, s.InFlight())
}

func TestRaw_in_group(t *testing.T) {
	t.Parallel()

	s := relay.New(relay.WithLogger(quietLogger()))
	g := s.Group("/v1", relay.WithGroupMiddleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Group", "v1")
			next.ServeHTTP(w, r)
		})
	}))
	relay.Raw(g, http.MethodGet, "/raw", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	resp := relaytest.Get(t, relaytest.NewClient(t, s), "/v1/raw")
	assert.Equal(t, http.StatusAccepted, resp.Status)
	assert.Equal(t, "v1", resp.Header.Get("X-Group"))
}

func TestPprof(t *testing.T) {
	t.Parallel()

	s := relay.New(relay.WithLogger(quietLogger()))
	relay.Get(s, "/", func(_ context.Context, req *relay.Request) (*relay.Response, error) {
		return relay.Text(req, http.StatusOK, "root"), nil
	})
	relay.Pprof(s, "")
	c := relaytest.NewClient(t, s)

	resp := relaytest.Get(t, c, "/debug/pprof/")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, string(resp.Body), "goroutine")

	resp = relaytest.Get(t, c, "/debug/pprof/goroutine?debug=1")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, strings.HasPrefix(string(resp.Body), "goroutine profile"))
}
