package models

import "time"

// Application is a tenant: it owns its users and license keys.
type Application struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// LicenseKey lets one new user register into its owning application.
type LicenseKey struct {
	ID            string
	ApplicationID string
	CreatedAt     time.Time
}
