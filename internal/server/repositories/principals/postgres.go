package principals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type PostgresRepository struct {
	db    dbx.DBTX
	query string
}

// NewPostgresRepository binds the repository to the table of the given class.
// Unknown classes fall back to users.
func NewPostgresRepository(db dbx.DBTX, class models.PrincipalClass) *PostgresRepository {
	q := `SELECT user_id, password_hash FROM users WHERE username = $1`
	if class == models.ClassAdmin {
		q = `SELECT admin_id, password_hash FROM admins WHERE username = $1`
	}
	return &PostgresRepository{db: db, query: q}
}

func (r *PostgresRepository) Credentials(ctx context.Context, username string) (*models.Credentials, error) {
	c := &models.Credentials{}
	if err := r.db.QueryRowContext(ctx, r.query, username).Scan(&c.PrincipalID, &c.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}
