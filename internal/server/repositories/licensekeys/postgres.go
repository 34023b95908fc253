package licensekeys

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
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create stores a new key. An unknown application surfaces as
// common.ErrorInvalidApplication.
func (r *PostgresRepository) Create(ctx context.Context, key *models.LicenseKey) error {
	query := `
		INSERT INTO license_keys (key_id, application_id)
		VALUES ($1, $2)
	`
	if _, err := r.db.ExecContext(ctx, query, key.ID, key.ApplicationID); err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return common.ErrorInvalidApplication
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, keyID string) (*models.LicenseKey, error) {
	query := `
		SELECT key_id, application_id, created_at
		FROM license_keys
		WHERE key_id = $1
	`
	key := &models.LicenseKey{}
	err := r.db.QueryRowContext(ctx, query, keyID).Scan(&key.ID, &key.ApplicationID, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return key, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, keyID string) error {
	query := `DELETE FROM license_keys WHERE key_id = $1`
	if _, err := r.db.ExecContext(ctx, query, keyID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Consume(ctx context.Context, keyID string) (string, error) {
	query := `DELETE FROM license_keys WHERE key_id = $1 RETURNING application_id`

	var applicationID string
	if err := r.db.QueryRowContext(ctx, query, keyID).Scan(&applicationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return applicationID, nil
}

func (r *PostgresRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.LicenseKey, error) {
	query := `
		SELECT key_id, application_id, created_at
		FROM license_keys
		WHERE application_id = $1
		ORDER BY created_at, key_id
	`
	rows, err := r.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	keys := make([]models.LicenseKey, 0)
	for rows.Next() {
		var k models.LicenseKey
		if err := rows.Scan(&k.ID, &k.ApplicationID, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return keys, nil
}
