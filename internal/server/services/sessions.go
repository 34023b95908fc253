package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
)

// SessionCache memoizes token lookups. The database stays authoritative: a
// miss or a cache error always falls through to it.
//
// Delete must leave a revocation mark that outlives any entry it replaces,
// and Set must not overwrite an existing key. A lookup that read the row
// before a concurrent delete then cannot put the dead token back.
type SessionCache interface {
	Get(ctx context.Context, class models.PrincipalClass, token string) (principalID string, ok bool, err error)
	Set(ctx context.Context, class models.PrincipalClass, token, principalID string) error
	Delete(ctx context.Context, class models.PrincipalClass, tokens ...string) error
}

// newToken generates session tokens.
var newToken = func() (string, error) {
	return common.MakeRandHexString(common.SessionTokenBytes)
}

// SessionRegistry issues and checks opaque session tokens. User and admin
// sessions live in separate namespaces.
type SessionRegistry struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	cache       SessionCache
	logger      logging.Logger
}

// NewSessionRegistry builds a registry on db. cache may be nil.
func NewSessionRegistry(db dbx.DBTX, m repomanager.RepositoryManager, cache SessionCache, logger logging.Logger) *SessionRegistry {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &SessionRegistry{db: db, repomanager: m, cache: cache, logger: logger.With("module", "sessions")}
}

// Bind returns a copy of the registry that runs every query on tx.
func (r *SessionRegistry) Bind(tx dbx.DBTX) *SessionRegistry {
	c := *r
	c.db = tx
	return &c
}

// Create issues a new token for principalID.
func (r *SessionRegistry) Create(ctx context.Context, class models.PrincipalClass, principalID string) (string, error) {
	if !class.Valid() {
		return "", fmt.Errorf("unknown principal class %d", class)
	}
	token, err := newToken()
	if err != nil {
		return "", fmt.Errorf("error generating session token: %w", err)
	}
	if err := r.repomanager.Sessions(r.db, class).Create(ctx, token, principalID); err != nil {
		return "", err
	}
	metrics.ObserveSessionIssued(class.String())
	return token, nil
}

// Resolve returns the principal owning token, or common.ErrorNotFound.
func (r *SessionRegistry) Resolve(ctx context.Context, class models.PrincipalClass, token string) (string, error) {
	if !class.Valid() {
		return "", fmt.Errorf("unknown principal class %d", class)
	}
	if token == "" {
		return "", common.ErrorNotFound
	}

	if r.cache != nil {
		id, ok, err := r.cache.Get(ctx, class, token)
		if err != nil {
			r.logger.Warn(ctx, "session cache get failed", "error", err)
		} else if ok {
			return id, nil
		}
	}

	id, err := r.repomanager.Sessions(r.db, class).Find(ctx, token)
	if err != nil {
		return "", err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, class, token, id); err != nil {
			r.logger.Warn(ctx, "session cache set failed", "error", err)
		}
	}
	return id, nil
}

// Validate reports whether token is a live session of class.
func (r *SessionRegistry) Validate(ctx context.Context, class models.PrincipalClass, token string) (bool, error) {
	_, err := r.Resolve(ctx, class, token)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrorNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Delete ends a session. Deleting an unknown token is not an error.
func (r *SessionRegistry) Delete(ctx context.Context, class models.PrincipalClass, token string) error {
	if !class.Valid() {
		return fmt.Errorf("unknown principal class %d", class)
	}
	if err := r.repomanager.Sessions(r.db, class).Delete(ctx, token); err != nil {
		return err
	}
	r.forget(ctx, class, token)
	return nil
}

// DeleteAllForPrincipal ends every session of principalID.
func (r *SessionRegistry) DeleteAllForPrincipal(ctx context.Context, class models.PrincipalClass, principalID string) error {
	_, err := r.deleteAllForPrincipal(ctx, class, principalID)
	return err
}

func (r *SessionRegistry) deleteAllForPrincipal(ctx context.Context, class models.PrincipalClass, principalID string) ([]string, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("unknown principal class %d", class)
	}
	tokens, err := r.repomanager.Sessions(r.db, class).DeleteByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	r.forget(ctx, class, tokens...)
	return tokens, nil
}

// forget drops tokens from the cache. Transactional callers repeat it after
// commit.
func (r *SessionRegistry) forget(ctx context.Context, class models.PrincipalClass, tokens ...string) {
	if r.cache == nil || len(tokens) == 0 {
		return
	}
	if err := r.cache.Delete(ctx, class, tokens...); err != nil {
		r.logger.Warn(ctx, "session cache delete failed", "error", err, "tokens", len(tokens))
	}
}

func (r *SessionRegistry) CreateSession(ctx context.Context, userID string) (string, error) {
	return r.Create(ctx, models.ClassUser, userID)
}

func (r *SessionRegistry) CreateAdminSession(ctx context.Context, adminID string) (string, error) {
	return r.Create(ctx, models.ClassAdmin, adminID)
}

func (r *SessionRegistry) ValidateSession(ctx context.Context, token string) (bool, error) {
	return r.Validate(ctx, models.ClassUser, token)
}

func (r *SessionRegistry) ValidateAdminSession(ctx context.Context, token string) (bool, error) {
	return r.Validate(ctx, models.ClassAdmin, token)
}

func (r *SessionRegistry) ResolveUser(ctx context.Context, token string) (string, error) {
	return r.Resolve(ctx, models.ClassUser, token)
}

func (r *SessionRegistry) ResolveAdmin(ctx context.Context, token string) (string, error) {
	return r.Resolve(ctx, models.ClassAdmin, token)
}

func (r *SessionRegistry) DeleteSession(ctx context.Context, token string) error {
	return r.Delete(ctx, models.ClassUser, token)
}

func (r *SessionRegistry) DeleteAdminSession(ctx context.Context, token string) error {
	return r.Delete(ctx, models.ClassAdmin, token)
}
