// Package common contains shared constants and sentinel errors used across
// gatekeeper components.
package common

// AuthorizationHeaderName is the HTTP header that carries a session token,
// either bare or in the "Bearer <token>" form.
const AuthorizationHeaderName = "Authorization"

// SessionTokenBytes is the amount of random data behind every session token.
// Tokens are hex encoded, so their string length is twice this value.
const SessionTokenBytes = 32
