package transport

import "net/http"

// DefaultHeaders sets each header in defaults that the request does not
// already carry.
func DefaultHeaders(defaults http.Header) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			var cloned bool
			for k, vals := range defaults {
				if len(vals) == 0 || req.Header.Get(k) != "" {
					continue
				}
				if !cloned {
					req = cloneRequest(req)
					cloned = true
				}
				req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vals...)
			}
			return next.RoundTrip(req)
		})
	}
}

// Upload replaces the Content-Type of requests marked with [WithUpload] so a
// JSON default never masks the multipart boundary.
func Upload() Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			ct, ok := uploadFromContext(req.Context())
			if !ok {
				return next.RoundTrip(req)
			}
			req = cloneRequest(req)
			req.Header.Del("Content-Type")
			req.Header.Set("Content-Type", ct)
			return next.RoundTrip(req)
		})
	}
}
