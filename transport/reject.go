package transport

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/singleflight"
)

// Rejector is told that the server refused credential. Implementations tear
// down whatever session the credential belonged to.
type Rejector interface {
	Reject(ctx context.Context, credential string) error
}

// RejectorFunc adapts a function to [Rejector].
type RejectorFunc func(ctx context.Context, credential string) error

// Reject implements [Rejector].
func (f RejectorFunc) Reject(ctx context.Context, credential string) error { return f(ctx, credential) }

// RejectUnauthorized reports every 401 response to rejector before the
// response is handed back, so by the time any caller sees the failure the
// session is already gone. Concurrent rejections of the same credential share
// a single Reject call; every caller waits for it.
//
// Requests sent without a credential are not reported: there is nothing of
// ours to tear down. A failed Reject is logged to logger (slog.Default when
// nil); the 401 is still returned.
func RejectUnauthorized(rejector Rejector, scheme string, logger *slog.Logger) Stage {
	if logger == nil {
		logger = slog.Default()
	}
	var group singleflight.Group
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}
			cred, ok := CredentialFromHeader(req.Header.Get("Authorization"), scheme)
			if !ok {
				return resp, nil
			}
			// Teardown must finish even if the caller gives up on the request.
			ctx := context.WithoutCancel(req.Context())
			_, rejectErr, _ := group.Do(cred, func() (any, error) {
				return nil, rejector.Reject(ctx, cred)
			})
			if rejectErr != nil {
				logger.ErrorContext(ctx, "teardown after 401 failed",
					slog.String("path", req.URL.Path),
					slog.String("request_id", req.Header.Get(HeaderRequestID)),
					slog.Any("error", rejectErr))
			}
			return resp, nil
		})
	}
}

// Clearer is the compare-and-clear capability [StoreRejector] needs.
type Clearer interface {
	ClearIf(ctx context.Context, credential string) (bool, error)
}

// StoreRejector clears store when it still holds the rejected credential and
// then calls onCleared. It serves consumers that route requests through the
// chain without a sessionkit Controller.
func StoreRejector(store Clearer, onCleared func(ctx context.Context, credential string)) Rejector {
	return RejectorFunc(func(ctx context.Context, credential string) error {
		cleared, err := store.ClearIf(ctx, credential)
		if err != nil {
			return err
		}
		if cleared && onCleared != nil {
			onCleared(ctx, credential)
		}
		return nil
	})
}
