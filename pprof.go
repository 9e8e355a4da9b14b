package relay

import (
	"net/http"
	"net/http/pprof"
)

// Pprof registers the runtime profiling endpoints under prefix, default
// "/debug/pprof". They are plain handlers and bypass the pair lifecycle.
func Pprof(reg Registrar, prefix string) {
	if prefix == "" {
		prefix = "/debug/pprof"
	}

	Raw(reg, http.MethodGet, prefix+"/", http.HandlerFunc(pprof.Index))
	Raw(reg, http.MethodGet, prefix+"/cmdline", http.HandlerFunc(pprof.Cmdline))
	Raw(reg, http.MethodGet, prefix+"/profile", http.HandlerFunc(pprof.Profile))
	Raw(reg, http.MethodGet, prefix+"/symbol", http.HandlerFunc(pprof.Symbol))
	Raw(reg, http.MethodGet, prefix+"/trace", http.HandlerFunc(pprof.Trace))
	for _, name := range []string{"goroutine", "heap", "allocs", "block", "mutex", "threadcreate"} {
		Raw(reg, http.MethodGet, prefix+"/"+name, pprof.Handler(name))
	}
}
