// Package relay serves HTTP by binding each request to its response in a
// single owned value, a Pair, so a response body may keep borrowing from
// the request it was built from until the last byte has been sent.
//
// A Pair moves through its phases exactly once and in order:
//
//	p := relay.Bind(srv)                         // Bound
//	err := p.SetRequest(build)                   // Requested
//	p.SetResponse(ctx, handler)                  // Responded
//	head, body, err := p.Finalize()              // Streaming
//	for { chunk, err := body.Next(ctx); ... }    // Closed at io.EOF
//
// Calling a step out of order panics with a *PhaseError. Release runs in
// reverse order of construction: body stream, response, request, and
// finally the server handle.
//
// Most programs never touch a Pair directly. They register handlers and let
// the Server drive one Pair per request:
//
//	srv := relay.New(relay.WithConfig(cfg), relay.WithLogger(logger))
//	srv.Use(relay.Recovery(logger), relay.RequestID(), relay.Logger(logger))
//	relay.Post(srv, "/echo", func(ctx context.Context, req *relay.Request) (*relay.Response, error) {
//	    return relay.Stream(req, http.StatusOK, "application/octet-stream", req.Body), nil
//	})
//	err := srv.ListenAndServe(ctx, "")
//
// Sized bodies are sent with Content-Length in fixed-size chunks. Chunked
// bodies are sent with chunked transfer encoding and flushed as data
// arrives. No trailers are ever produced.
package relay
