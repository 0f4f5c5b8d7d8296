// Package jwt inspects credentials that happen to be JSON Web Tokens so the
// client can skip an optimistic boot for a token that has already expired.
// It never verifies signatures and never issues tokens.
package jwt
