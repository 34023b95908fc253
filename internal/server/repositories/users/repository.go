// Package users declares the repository contract for end-user accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// Repository stores User rows. Lookups of absent users return
// common.ErrorNotFound.
type Repository interface {
	// Create inserts the user. A taken username yields common.ErrorAlreadyExists,
	// an unknown application common.ErrorInvalidApplication.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetIDByUsername(ctx context.Context, username string) (string, error)
	ListByApplication(ctx context.Context, applicationID string) ([]models.UserSummary, error)
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error
	UpdateLastLoginIP(ctx context.Context, userID string, ip string) error
	Delete(ctx context.Context, userID string) error
}
