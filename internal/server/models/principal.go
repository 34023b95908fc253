// Package models defines server-side data models persisted in the database.
package models

// PrincipalClass tells the two authenticated identity classes apart. Users
// and admins live in separate tables with separate session namespaces, so a
// token issued for one class never resolves in the other.
type PrincipalClass int

const (
	ClassUser PrincipalClass = iota + 1
	ClassAdmin
)

func (c PrincipalClass) String() string {
	switch c {
	case ClassUser:
		return "user"
	case ClassAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Valid reports whether c is one of the known classes.
func (c PrincipalClass) Valid() bool {
	return c == ClassUser || c == ClassAdmin
}

// Credentials is what credential verification needs from either class.
type Credentials struct {
	PrincipalID  string
	PasswordHash string
}
