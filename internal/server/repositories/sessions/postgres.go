package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

type table struct {
	name   string
	column string
}

var (
	userSessions  = table{name: "sessions", column: "user_id"}
	adminSessions = table{name: "admin_sessions", column: "admin_id"}
)

// PostgresRepository implements Repository over dbx.DBTX for one class.
type PostgresRepository struct {
	db dbx.DBTX
	t  table
}

// NewPostgresRepository binds the repository to the session table of class.
// Unknown classes fall back to user sessions.
func NewPostgresRepository(db dbx.DBTX, class models.PrincipalClass) *PostgresRepository {
	t := userSessions
	if class == models.ClassAdmin {
		t = adminSessions
	}
	return &PostgresRepository{db: db, t: t}
}

func (r *PostgresRepository) Create(ctx context.Context, token string, principalID string) error {
	query := fmt.Sprintf(`INSERT INTO %s (session_id, %s) VALUES ($1, $2)`, r.t.name, r.t.column)
	if _, err := r.db.ExecContext(ctx, query, token, principalID); err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, token string) (string, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE session_id = $1`, r.t.column, r.t.name)

	var principalID string
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&principalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return principalID, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, r.t.name)
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByPrincipal(ctx context.Context, principalID string) ([]string, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 RETURNING session_id`, r.t.name, r.t.column)

	rows, err := r.db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	tokens := make([]string, 0)
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		tokens = append(tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tokens, nil
}
