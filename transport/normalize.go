package transport

import (
	"net/http"
	"strings"
)

// NormalizePath collapses runs of "/" in the request path, so "//auth//me/"
// and "/auth/me/" reach the same endpoint.
func NormalizePath() Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			p := collapseSlashes(req.URL.Path)
			if p == req.URL.Path {
				return next.RoundTrip(req)
			}
			req = cloneRequest(req)
			req.URL.Path = p
			req.URL.RawPath = ""
			return next.RoundTrip(req)
		})
	}
}

func collapseSlashes(p string) string {
	if !strings.Contains(p, "//") {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	prev := byte(0)
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' && prev == '/' {
			continue
		}
		b.WriteByte(c)
		prev = c
	}
	return b.String()
}
