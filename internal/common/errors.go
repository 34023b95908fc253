// Package common defines shared constants and sentinel errors used across
// the service layers of gatekeeper. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Caller input is incomplete. Detected by the transport adapter before
	// any core call is made.
	ErrorMissingField = errors.New("missing field")

	// Auth errors. Invalid credentials deliberately do not say whether the
	// username or the password was wrong.
	ErrorInvalidCredentials = errors.New("invalid credentials")
	ErrorUnauthorized       = errors.New("unauthorized")

	// Entitlement errors.
	ErrorInvalidKey         = errors.New("invalid registration key")
	ErrorInvalidApplication = errors.New("invalid application")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
)
