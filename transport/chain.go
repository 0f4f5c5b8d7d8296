package transport

import "net/http"

// Stage wraps a RoundTripper with one concern.
type Stage func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to [http.RoundTripper].
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements [http.RoundTripper].
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// Chain wraps base with stages, first stage outermost. A nil base means
// [http.DefaultTransport].
func Chain(base http.RoundTripper, stages ...Stage) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(stages) - 1; i >= 0; i-- {
		if stages[i] == nil {
			continue
		}
		rt = stages[i](rt)
	}
	return rt
}

// cloneRequest returns a shallow copy of req with its own header map, since
// a RoundTripper must not modify the caller's request.
func cloneRequest(req *http.Request) *http.Request {
	return req.Clone(req.Context())
}
