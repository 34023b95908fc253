// Package admins persists administrator accounts.
package admins

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, admin *models.Admin) error
	GetByID(ctx context.Context, adminID string) (*models.Admin, error)
}
