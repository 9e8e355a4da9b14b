package relay

import "context"

// HandlerFunc produces the response for a request. Handlers build responses
// from the request (req.Respond, Text, Stream, Encode) and may hand the
// request's own body reader to the response; the Pair keeps the request
// alive until that body has been sent.
//
// Returning an error produces an RFC 9457 problem response instead. Returning
// a nil response and a nil error produces 204 No Content.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)
