// Package ctl implements gatekeeperctl, the operator tool that bootstraps a
// deployment: it applies migrations and creates applications, admins and
// license keys directly against the database.
package ctl

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/spf13/cobra"
)

const dsnEnv = "GATEKEEPER_DSN"

// Store is the slice of services.IdentityStore the commands use.
type Store interface {
	CreateApplication(ctx context.Context, name string) (string, error)
	CreateAdmin(ctx context.Context, username, password, applicationID, email string) (string, error)
	CreateLicenseKey(ctx context.Context, applicationID string) (string, error)
	ListUsers(ctx context.Context, applicationID string) ([]models.UserSummary, error)
}

type backend struct {
	migrate func(ctx context.Context) error
	store   Store
	close   func() error
}

type options struct {
	dsn    string
	hasher string
}

// openBackend is a seam so command tests run without a database.
var openBackend = func(_ context.Context, o *options) (*backend, error) {
	hasher, err := cryptox.NewPasswordHasher(o.hasher, 0)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", o.dsn)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	rm := repomanager.NewPostgresRepositoryManager()
	store, err := services.NewIdentityStore(db, rm, hasher)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &backend{
		migrate: func(ctx context.Context) error { return rm.RunMigrations(ctx, db) },
		store:   store,
		close:   db.Close,
	}, nil
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	defaults := &config.Config{}
	defaults.LoadDefaults()

	o := &options{}

	rootCmd := &cobra.Command{
		Use:           "gatekeeperctl",
		Short:         "Gatekeeper operator tool",
		Long:          "Bootstraps a gatekeeper database: migrations, applications, admins and license keys.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// flag > env > default
			if !cmd.Flags().Changed("dsn") {
				if v := os.Getenv(dsnEnv); v != "" {
					o.dsn = v
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&o.dsn, "dsn", defaults.DatabaseDSN, "PostgreSQL DSN (env "+dsnEnv+")")
	rootCmd.PersistentFlags().StringVar(&o.hasher, "hasher", defaults.PasswordHasher, "password hash algorithm for new admins (argon2id|bcrypt)")

	rootCmd.AddCommand(newMigrateCmd(o))
	rootCmd.AddCommand(newCreateAppCmd(o))
	rootCmd.AddCommand(newCreateAdminCmd(o))
	rootCmd.AddCommand(newIssueKeyCmd(o))
	rootCmd.AddCommand(newListUsersCmd(o))

	return rootCmd
}

// withBackend opens the backend for one command and closes it afterwards.
func withBackend(cmd *cobra.Command, o *options, fn func(ctx context.Context, b *backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := openBackend(ctx, o)
	if err != nil {
		return err
	}
	defer func() { _ = b.close() }()
	return fn(ctx, b)
}
