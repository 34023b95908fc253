// Package licensekeys persists registration keys issued per application.
package licensekeys

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, key *models.LicenseKey) error
	// Find returns the key or common.ErrorNotFound.
	Find(ctx context.Context, keyID string) (*models.LicenseKey, error)
	// Delete is idempotent: removing an absent key is not an error.
	Delete(ctx context.Context, keyID string) error
	// Consume deletes the key and returns its application in one statement,
	// so a key can onboard at most one user. common.ErrorNotFound if absent.
	Consume(ctx context.Context, keyID string) (string, error)
	ListByApplication(ctx context.Context, applicationID string) ([]models.LicenseKey, error)
}
