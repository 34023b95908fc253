package applications

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// PostgresRepository stores applications over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO applications (application_id, name)
		VALUES ($1, $2)
	`
	if _, err := r.db.ExecContext(ctx, query, app.ID, app.Name); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, applicationID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM applications WHERE application_id = $1)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, applicationID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
