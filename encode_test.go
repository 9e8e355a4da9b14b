package relay_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/relay"
	"github.com/bjaus/relay/relaytest"
)

type item struct {
	Name  string `json:"name" xml:"name" yaml:"name"`
	Count int    `json:"count" xml:"count" yaml:"count"`
}

type csvEncoder struct{}

func (csvEncoder) ContentType() string { return "text/csv" }

func (csvEncoder) Encode(w io.Writer, v any) error {
	it, ok := v.(item)
	if !ok {
		return relay.Error(http.StatusInternalServerError, "not an item")
	}
	_, err := io.WriteString(w, it.Name+","+strconv.Itoa(it.Count)+"\n")
	return err
}

func newCodecServer(t *testing.T) *relaytest.Client {
	t.Helper()
	s := relay.New(relay.WithLogger(quietLogger()), relay.WithEncoder(csvEncoder{}))
	relay.Get(s, "/item", func(_ context.Context, req *relay.Request) (*relay.Response, error) {
		return relay.Encode(req, http.StatusOK, item{Name: "widget", Count: 3})
	})
	relay.Post(s, "/item", func(_ context.Context, req *relay.Request) (*relay.Response, error) {
		var it item
		if err := relay.Decode(req, &it); err != nil {
			return nil, err
		}
		it.Count++
		return relay.Encode(req, http.StatusCreated, it)
	})
	return relaytest.NewClient(t, s)
}

func TestEncode_negotiation(t *testing.T) {
	t.Parallel()

	c := newCodecServer(t)

	tests := map[string]struct {
		accept     string
		wantStatus int
		wantType   string
		check      func(t *testing.T, body []byte)
	}{
		"no accept header is json": {
			wantStatus: http.StatusOK,
			wantType:   "application/json",
			check: func(t *testing.T, body []byte) {
				t.Helper()
				assert.JSONEq(t, `{"name":"widget","count":3}`, string(body))
			},
		},
		"xml": {
			accept:     "application/xml",
			wantStatus: http.StatusOK,
			wantType:   "application/xml",
			check: func(t *testing.T, body []byte) {
				t.Helper()
				assert.Contains(t, string(body), "<name>widget</name>")
			},
		},
		"yaml preferred by quality": {
			accept:     "application/json;q=0.5, application/yaml",
			wantStatus: http.StatusOK,
			wantType:   "application/yaml",
			check: func(t *testing.T, body []byte) {
				t.Helper()
				var it item
				require.NoError(t, yaml.Unmarshal(body, &it))
				assert.Equal(t, item{Name: "widget", Count: 3}, it)
			},
		},
		"custom encoder": {
			accept:     "text/csv",
			wantStatus: http.StatusOK,
			wantType:   "text/csv",
			check: func(t *testing.T, body []byte) {
				t.Helper()
				assert.Equal(t, "widget,3\n", string(body))
			},
		},
		"wildcard is json": {
			accept:     "*/*",
			wantStatus: http.StatusOK,
			wantType:   "application/json",
		},
		"nothing acceptable": {
			accept:     "image/png",
			wantStatus: http.StatusNotAcceptable,
			wantType:   "application/problem+json",
		},
		"zero quality is skipped": {
			accept:     "application/xml;q=0",
			wantStatus: http.StatusNotAcceptable,
			wantType:   "application/problem+json",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := http.Header{}
			if tc.accept != "" {
				h.Set("Accept", tc.accept)
			}
			resp := relaytest.Do(t, c, http.MethodGet, "/item", h, nil)
			assert.Equal(t, tc.wantStatus, resp.Status)
			assert.Equal(t, tc.wantType, resp.Header.Get("Content-Type"))
			assert.False(t, resp.Chunked, "encoded bodies are sized")
			if tc.check != nil {
				tc.check(t, resp.Body)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	c := newCodecServer(t)

	tests := map[string]struct {
		contentType string
		body        []byte
		wantStatus  int
		wantCount   int
	}{
		"json": {
			contentType: "application/json",
			body:        []byte(`{"name":"a","count":1}`),
			wantStatus:  http.StatusCreated,
			wantCount:   2,
		},
		"yaml": {
			contentType: "application/yaml",
			body:        []byte("name: a\ncount: 41\n"),
			wantStatus:  http.StatusCreated,
			wantCount:   42,
		},
		"xml": {
			contentType: "application/xml",
			body:        []byte(`<item><name>a</name><count>9</count></item>`),
			wantStatus:  http.StatusCreated,
			wantCount:   10,
		},
		"unsupported type": {
			contentType: "text/plain",
			body:        []byte("hello"),
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		"malformed json": {
			contentType: "application/json",
			body:        []byte(`{"name":`),
			wantStatus:  http.StatusBadRequest,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp := relaytest.Post(t, c, "/item", tc.contentType, tc.body)
			require.Equal(t, tc.wantStatus, resp.Status, string(resp.Body))
			if tc.wantCount == 0 {
				return
			}
			var it item
			require.NoError(t, json.NewDecoder(bytes.NewReader(resp.Body)).Decode(&it))
			assert.Equal(t, tc.wantCount, it.Count)
		})
	}
}

func TestDecode_body_over_limit(t *testing.T) {
	t.Parallel()

	s := relay.New(relay.WithLogger(quietLogger()))
	relay.Post(s, "/", func(_ context.Context, req *relay.Request) (*relay.Response, error) {
		var v map[string]string
		if err := relay.Decode(req, &v); err != nil {
			return nil, err
		}
		return nil, nil
	}, relay.WithBodyLimit(16))

	// Content-Length is unknown, so the limit trips while decoding.
	c := relaytest.NewClient(t, s)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, c.Server.URL+"/",
		io.MultiReader(bytes.NewReader([]byte(`{"key":"`)), bytes.NewReader(bytes.Repeat([]byte("v"), 64))))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Server.Client().Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}
