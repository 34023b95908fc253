// Package applications persists tenant applications.
package applications

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, app *models.Application) error
	Exists(ctx context.Context, applicationID string) (bool, error)
}
