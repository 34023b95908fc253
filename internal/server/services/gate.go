package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// Gate turns a presented session token into an authorized principal id.
type Gate struct {
	sessions *SessionRegistry
}

func NewGate(sessions *SessionRegistry) *Gate {
	return &Gate{sessions: sessions}
}

// RequireUser returns the user behind token or common.ErrorUnauthorized.
func (g *Gate) RequireUser(ctx context.Context, token string) (string, error) {
	return g.require(ctx, models.ClassUser, token)
}

// RequireAdmin returns the admin behind token or common.ErrorUnauthorized.
// User tokens never pass.
func (g *Gate) RequireAdmin(ctx context.Context, token string) (string, error) {
	return g.require(ctx, models.ClassAdmin, token)
}

func (g *Gate) require(ctx context.Context, class models.PrincipalClass, token string) (string, error) {
	if token == "" {
		return "", common.ErrorUnauthorized
	}
	id, err := g.sessions.Resolve(ctx, class, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", fmt.Errorf("error resolving %s session: %w", class, err)
	}
	return id, nil
}
