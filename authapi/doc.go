// Package authapi is a typed client for the finance backend's auth service:
// login, registration, profile and settings.
//
// The client is deliberately thin. It owns URL resolution, JSON encoding and
// error decoding; credentials are attached by whatever [http.Client] it is
// given (normally the transport chain from sessionkit).
package authapi
