// Package transport builds the outbound request pipeline used for every call
// to the finance backend: an ordered chain of [http.RoundTripper] stages that
// tag, trace, log, normalize, authorize and finally watch for authorization
// rejections.
//
// # Chain order
//
// [Chain] wraps base with stages so that the first stage is outermost. The
// canonical order used by sessionkit is:
//
//	RequestID → Tracing → Logging → NormalizePath → DefaultHeaders →
//	Upload → Authorize → RejectUnauthorized → base
//
// Authorize reads the credential from its source on every request, never from
// a cached copy, so a logout or teardown is visible to the very next request.
// RejectUnauthorized runs teardown before the 401 response reaches the caller.
//
// # What this package must NOT do
//
//   - Decide session state (it reports rejections to a [Rejector]).
//   - Log credentials or Authorization header values.
package transport
