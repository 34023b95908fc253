package users

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

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (user_id, username, password_hash, application_id, email, registration_ip)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.UserName, user.PasswordHash, user.ApplicationID, user.Email, user.RegistrationIP)
	if err != nil {
		switch {
		case dbx.IsUniqueViolation(err):
			return common.ErrorAlreadyExists
		case dbx.IsForeignKeyViolation(err):
			return common.ErrorInvalidApplication
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	query := `
		SELECT user_id, username, password_hash, application_id, email, last_login_ip, registration_ip, created_at
		FROM users
		WHERE user_id = $1
	`
	var (
		user           models.User
		lastLoginIP    sql.NullString
		registrationIP sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID, &user.UserName, &user.PasswordHash, &user.ApplicationID, &user.Email,
		&lastLoginIP, &registrationIP, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.LastLoginIP = nullableString(lastLoginIP)
	user.RegistrationIP = nullableString(registrationIP)
	return &user, nil
}

func (r *PostgresRepository) GetIDByUsername(ctx context.Context, username string) (string, error) {
	query := `SELECT user_id FROM users WHERE username = $1`

	var id string
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.UserSummary, error) {
	query := `
		SELECT user_id, username
		FROM users
		WHERE application_id = $1
		ORDER BY username, user_id
	`
	rows, err := r.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.UserSummary, 0)
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.UserName); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1 WHERE user_id = $2`
	return r.execOne(ctx, query, passwordHash, userID)
}

func (r *PostgresRepository) UpdateLastLoginIP(ctx context.Context, userID string, ip string) error {
	query := `UPDATE users SET last_login_ip = $1 WHERE user_id = $2`
	return r.execOne(ctx, query, ip, userID)
}

// Delete removes the user; its sessions go with it (ON DELETE CASCADE).
func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM users WHERE user_id = $1`
	return r.execOne(ctx, query, userID)
}

// execOne runs a statement that must touch exactly one user row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
