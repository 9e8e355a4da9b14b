package relay_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/relay"
	"github.com/bjaus/relay/relaytest"
)

type greeting string

type counter struct{ start int }

func TestState(t *testing.T) {
	t.Parallel()

	s := relay.New()
	relay.Manage(s, greeting("hello"))
	relay.Manage(s, &counter{start: 5})

	assert.Panics(t, func() { relay.Manage(s, greeting("again")) }, "each type is managed once")

	p := requested(t, s, "/")
	defer p.Close() //nolint:errcheck // test cleanup

	p.SetResponse(context.Background(), func(_ context.Context, _ *relay.Server, req *relay.Request) *relay.Response {
		g, ok := relay.State[greeting](req)
		assert.True(t, ok)
		assert.Equal(t, greeting("hello"), g)

		assert.Equal(t, 5, relay.MustState[*counter](req).start)

		_, ok = relay.State[int](req)
		assert.False(t, ok)
		assert.Panics(t, func() { relay.MustState[string](req) })
		return req.Respond(http.StatusNoContent)
	})
}

type userKey struct{ name string }

func TestSetValue_GetValue(t *testing.T) {
	t.Parallel()

	s := relay.New(relay.WithLogger(quietLogger()))
	s.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, relay.SetValue(r, userKey{name: "ada"}))
		})
	})
	relay.Get(s, "/me", func(ctx context.Context, req *relay.Request) (*relay.Response, error) {
		u, ok := relay.GetValue[userKey](ctx)
		if !ok {
			return nil, relay.Error(http.StatusUnauthorized, "no user")
		}
		return relay.Text(req, http.StatusOK, u.name), nil
	})

	resp := relaytest.Get(t, relaytest.NewClient(t, s), "/me")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "ada", string(resp.Body))

	_, ok := relay.GetValue[userKey](httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
