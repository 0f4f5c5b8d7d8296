package transport

import (
	"net/http"

	"github.com/google/uuid"
)

// HeaderRequestID is set on every outbound request that lacks one.
const HeaderRequestID = "X-Request-ID"

// RequestID tags each request with a random UUID.
func RequestID() Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(HeaderRequestID) != "" {
				return next.RoundTrip(req)
			}
			req = cloneRequest(req)
			req.Header.Set(HeaderRequestID, uuid.NewString())
			return next.RoundTrip(req)
		})
	}
}
