package transport

import (
	"log/slog"
	"net/http"
	"time"
)

// Logging writes one debug line per request and one per response. Failures
// and 5xx responses are logged at warn.
func Logging(logger *slog.Logger) Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			attrs := []any{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("request_id", req.Header.Get(HeaderRequestID)),
			}
			logger.DebugContext(ctx, "outbound request", attrs...)

			start := time.Now()
			resp, err := next.RoundTrip(req)
			latency := time.Since(start)
			if err != nil {
				logger.WarnContext(ctx, "outbound request failed",
					append(attrs, slog.Duration("latency", latency), slog.Any("error", err))...)
				return resp, err
			}

			level := slog.LevelDebug
			if resp.StatusCode >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "outbound response",
				append(attrs, slog.Int("status", resp.StatusCode), slog.Duration("latency", latency))...)
			return resp, nil
		})
	}
}
