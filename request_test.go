package relay_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/relay"
)

func TestNewRequest(t *testing.T) {
	t.Parallel()

	s := relay.New()
	r := httptest.NewRequest(http.MethodPost, "/things/1?sort=asc", strings.NewReader("payload"))
	r.Header.Set("X-Test", "yes")

	req, err := relay.NewRequest(s, r)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/things/1", req.URL.Path)
	assert.Equal(t, "asc", req.Query().Get("sort"))
	assert.Equal(t, "yes", req.Header.Get("X-Test"))
	assert.Equal(t, int64(7), req.ContentLength)
	assert.Same(t, s, req.Server())
	assert.Same(t, r, req.Raw())
	assert.NotNil(t, req.Context())
	assert.Empty(t, req.ID())

	b, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
}

func TestNewRequest_validation(t *testing.T) {
	t.Parallel()

	cfg := relay.DefaultConfig()
	cfg.BodyLimit = 4
	s := relay.New(relay.WithConfig(cfg))

	tests := map[string]struct {
		build      func() *http.Request
		wantErr    error
		wantStatus int
	}{
		"nil url": {
			build:      func() *http.Request { return &http.Request{Method: http.MethodGet} },
			wantErr:    relay.ErrMalformedRequest,
			wantStatus: http.StatusBadRequest,
		},
		"missing method": {
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Method = ""
				return r
			},
			wantErr:    relay.ErrMalformedRequest,
			wantStatus: http.StatusBadRequest,
		},
		"negative content length": {
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.ContentLength = -7
				return r
			},
			wantErr:    relay.ErrMalformedRequest,
			wantStatus: http.StatusBadRequest,
		},
		"declared length over limit": {
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/", strings.NewReader("12345"))
			},
			wantErr:    relay.ErrRequestTooLarge,
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			req, err := relay.NewRequest(s, tc.build())
			assert.Nil(t, req)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.wantStatus, relay.ErrorStatus(err))
		})
	}
}

func TestNewRequest_body_limit_while_reading(t *testing.T) {
	t.Parallel()

	cfg := relay.DefaultConfig()
	cfg.BodyLimit = 4
	s := relay.New(relay.WithConfig(cfg))

	r := httptest.NewRequest(http.MethodPost, "/", io.MultiReader(strings.NewReader("123456789")))
	r.ContentLength = -1

	req, err := relay.NewRequest(s, r)
	require.NoError(t, err)

	_, err = io.ReadAll(req.Body)
	require.ErrorIs(t, err, relay.ErrRequestTooLarge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, relay.ErrorStatus(err))
}

func TestRequest_Defer_runs_in_reverse(t *testing.T) {
	t.Parallel()

	var order []string
	errSecond := errors.New("second")

	s := relay.New()
	p := responded(t, s, func(req *relay.Request) *relay.Response {
		req.Defer(func() error {
			order = append(order, "first")
			return nil
		})
		req.Defer(func() error {
			order = append(order, "second")
			return errSecond
		})
		return req.Respond(http.StatusOK)
	})

	err := p.Close()
	require.ErrorIs(t, err, errSecond)
	assert.Equal(t, []string{"second", "first"}, order)
}
