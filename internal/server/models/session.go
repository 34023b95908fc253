package models

import "time"

// Session binds an opaque token to one principal. Its presence in storage
// is the whole proof of validity: sessions do not expire.
type Session struct {
	Token       string
	PrincipalID string
	Class       PrincipalClass
	CreatedAt   time.Time
}
