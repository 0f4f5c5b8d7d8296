package transport

import "context"

type uploadContextKey struct{}

// WithUpload marks requests made with ctx as multipart uploads whose body
// carries contentType (including its boundary). The [Upload] stage replaces
// any default Content-Type with it.
func WithUpload(ctx context.Context, contentType string) context.Context {
	return context.WithValue(ctx, uploadContextKey{}, contentType)
}

func uploadFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	ct, _ := ctx.Value(uploadContextKey{}).(string)
	return ct, ct != ""
}

type credentialContextKey struct{}

// WithCredential pins the credential for requests made with ctx, overriding
// the [Authorize] stage's source. An empty credential sends the request
// anonymously.
func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialContextKey{}, credential)
}

func credentialFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	cred, ok := ctx.Value(credentialContextKey{}).(string)
	return cred, ok
}
