// Package sessions persists opaque session tokens, one table per principal
// class.
package sessions

import "context"

type Repository interface {
	Create(ctx context.Context, token string, principalID string) error
	// Find returns the principal owning token, or common.ErrorNotFound.
	Find(ctx context.Context, token string) (string, error)
	// Delete is idempotent.
	Delete(ctx context.Context, token string) error
	// DeleteByPrincipal drops every session of principalID and returns the
	// removed tokens.
	DeleteByPrincipal(ctx context.Context, principalID string) ([]string, error)
}
