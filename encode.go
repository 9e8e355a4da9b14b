package relay

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Encoder encodes response values to a wire format.
type Encoder interface {
	ContentType() string
	Encode(w io.Writer, v any) error
}

// Decoder decodes request bodies from a wire format.
type Decoder interface {
	ContentType() string
	Decode(r io.Reader, v any) error
}

type jsonCodec struct{}

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Encode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func (jsonCodec) Decode(r io.Reader, v any) error {
	err := json.NewDecoder(r).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type xmlCodec struct{}

func (xmlCodec) ContentType() string { return "application/xml" }

func (xmlCodec) Encode(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(v)
}

func (xmlCodec) Decode(r io.Reader, v any) error {
	err := xml.NewDecoder(r).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type yamlCodec struct{}

func (yamlCodec) ContentType() string { return "application/yaml" }

func (yamlCodec) Encode(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (yamlCodec) Decode(r io.Reader, v any) error {
	err := yaml.NewDecoder(r).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// codecRegistry holds all registered encoders and decoders.
// Index 0 is always JSON (the default).
type codecRegistry struct {
	encoders []Encoder
	decoders []Decoder
}

func newCodecRegistry(userEncoders []Encoder) *codecRegistry {
	cr := &codecRegistry{
		encoders: make([]Encoder, 0, 3+len(userEncoders)),
		decoders: []Decoder{jsonCodec{}, xmlCodec{}, yamlCodec{}},
	}
	cr.encoders = append(cr.encoders, jsonCodec{}, xmlCodec{}, yamlCodec{})
	cr.encoders = append(cr.encoders, userEncoders...)
	return cr
}

// negotiate picks an encoder based on the Accept header value.
// Returns (JSON, true) for empty or */* accept values.
// Returns (nil, false) if an explicit Accept has no match.
func (cr *codecRegistry) negotiate(accept string) (Encoder, bool) {
	if accept == "" {
		return cr.encoders[0], true
	}

	type candidate struct {
		encoder Encoder
		quality float64
	}

	var best candidate
	best.quality = -1

	for part := range strings.SplitSeq(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}

		q := 1.0
		if qs, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(qs, 64); err == nil {
				q = parsed
			}
		}
		if q <= 0 || q <= best.quality {
			continue
		}

		if mediaType == "*/*" {
			best = candidate{encoder: cr.encoders[0], quality: q}
			continue
		}

		for _, enc := range cr.encoders {
			if enc.ContentType() == mediaType {
				best = candidate{encoder: enc, quality: q}
				break
			}
		}
	}

	if best.encoder == nil {
		return nil, false
	}
	return best.encoder, true
}

// decoderFor returns the decoder matching the given Content-Type.
// Returns (JSON decoder, true) for empty content type.
func (cr *codecRegistry) decoderFor(contentType string) (Decoder, bool) {
	if contentType == "" {
		return cr.decoders[0], true
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, false
	}

	for _, dec := range cr.decoders {
		if dec.ContentType() == mediaType {
			return dec, true
		}
	}
	return nil, false
}

// Encode returns a response whose sized body is v encoded in the format the
// request's Accept header prefers. An Accept header nothing satisfies yields
// a 406 error.
func Encode(req *Request, status int, v any) (*Response, error) {
	enc, ok := req.server.codecs.negotiate(req.Header.Get("Accept"))
	if !ok {
		return nil, Errorf(http.StatusNotAcceptable, "no encoder for Accept %q", req.Header.Get("Accept"))
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, v); err != nil {
		return nil, fmt.Errorf("relay: encode %s: %w", enc.ContentType(), err)
	}
	return Bytes(req, status, enc.ContentType(), buf.Bytes()), nil
}

// Decode reads the request body into v using the decoder matching its
// Content-Type.
func Decode(req *Request, v any) error {
	ct := req.Header.Get("Content-Type")
	dec, ok := req.server.codecs.decoderFor(ct)
	if !ok {
		return Errorf(http.StatusUnsupportedMediaType, "unsupported content type %q", ct)
	}
	if err := dec.Decode(req.Body, v); err != nil {
		if ErrorStatus(err) == http.StatusRequestEntityTooLarge {
			return err
		}
		return Errorf(http.StatusBadRequest, "%w: %w", ErrMalformedRequest, err)
	}
	return nil
}
