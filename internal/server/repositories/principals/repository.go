// Package principals reads login credentials for either principal class.
package principals

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type Repository interface {
	// Credentials returns the id and stored digest for username, or
	// common.ErrorNotFound.
	Credentials(ctx context.Context, username string) (*models.Credentials, error)
}
