package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/admins"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/applications"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/licensekeys"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/principals"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so callers can hand
// in either the pool or an open transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Applications(db dbx.DBTX) applications.Repository
	LicenseKeys(db dbx.DBTX) licensekeys.Repository
	Users(db dbx.DBTX) users.Repository
	Admins(db dbx.DBTX) admins.Repository
	Principals(db dbx.DBTX, class models.PrincipalClass) principals.Repository
	Sessions(db dbx.DBTX, class models.PrincipalClass) sessions.Repository
}
