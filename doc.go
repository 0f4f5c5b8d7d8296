// Package sessionkit manages the client side of an authenticated session
// against the finance tracker backend: it acquires a credential, persists it,
// attaches it to every outbound request, reconciles the cached user profile
// with the server and tears everything down when the server rejects it.
//
// The package is designed for concurrent use: [Controller] methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
//
// # Lifecycle
//
// A Controller starts in [StateBooting]. [Controller.Boot] resolves it to
// [StateAuthenticated] or [StateUnauthenticated] from what is durably stored,
// optimistically when a profile snapshot exists. Background reconciliation
// never blocks rendering; it only sets [View.Reconciling].
//
// # Ordering
//
// Every identity-affecting write takes a number from one monotonic sequence
// when its data is observed. A commit older than the last applied one is
// discarded, so a slow reconciliation can never overwrite a newer local edit.
//
// # Architecture boundaries
//
// sessionkit is the public surface. Durable media live in store, the request
// pipeline in transport, the backend client in authapi, the theme logic in
// preference. None of those packages import sessionkit.
//
// # What this package must NOT do
//
//   - Perform I/O while holding the lock that guards the visible state.
//   - Return an authorization rejection inline; rejections become teardown.
//   - Log credentials.
package sessionkit
