// Package pkce implements the Proof Key for Code Exchange pieces of the
// account-connect flow (RFC 7636).
package pkce

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"
)

// GenerateVerifier returns a high-entropy URL-safe code verifier. The result
// is 43 characters, within the 43-128 range the RFC allows.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// Challenge derives the S256 code challenge for a verifier:
// base64url(SHA-256(verifier)) without padding.
func Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// GenerateState returns a CSRF state token bound to one authorization
// attempt.
func GenerateState() (string, error) {
	return gonanoid.New(32)
}
