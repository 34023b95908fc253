package models

import "time"

type User struct {
	ID             string
	UserName       string
	PasswordHash   string
	Email          string
	ApplicationID  string
	LastLoginIP    *string
	RegistrationIP *string
	CreatedAt      time.Time
}

// UserSummary is the list view of a user.
type UserSummary struct {
	ID       string
	UserName string
}

type Admin struct {
	ID            string
	UserName      string
	PasswordHash  string
	Email         string
	ApplicationID string
	CreatedAt     time.Time
}
