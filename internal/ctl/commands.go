package ctl

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/spf13/cobra"
)

func newMigrateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, o, func(ctx context.Context, b *backend) error {
				if err := b.migrate(ctx); err != nil {
					return fmt.Errorf("migrations error: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func newCreateAppCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create-app NAME",
		Short: "Create an application and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, o, func(ctx context.Context, b *backend) error {
				id, err := b.store.CreateApplication(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
}

func newCreateAdminCmd(o *options) *cobra.Command {
	var (
		appID         string
		username      string
		email         string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin for an application and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				pw  []byte
				err error
			)
			if passwordStdin {
				pw, err = readLine(cmd.InOrStdin())
			} else {
				pw, err = GetPassword(cmd.ErrOrStderr())
			}
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			defer common.WipeByteArray(pw)
			if len(pw) == 0 {
				return fmt.Errorf("%w: password", common.ErrorMissingField)
			}

			return withBackend(cmd, o, func(ctx context.Context, b *backend) error {
				id, err := b.store.CreateAdmin(ctx, username, string(pw), appID, email)
				if errors.Is(err, common.ErrorInvalidApplication) {
					return fmt.Errorf("application %q does not exist", appID)
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&appID, "app", "", "application id (required)")
	cmd.Flags().StringVar(&username, "username", "", "admin username (required)")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin instead of the terminal")
	_ = cmd.MarkFlagRequired("app")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func newIssueKeyCmd(o *options) *cobra.Command {
	var appID string

	cmd := &cobra.Command{
		Use:   "issue-key",
		Short: "Issue a license key for an application and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, o, func(ctx context.Context, b *backend) error {
				key, err := b.store.CreateLicenseKey(ctx, appID)
				if errors.Is(err, common.ErrorInvalidApplication) {
					return fmt.Errorf("application %q does not exist", appID)
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&appID, "app", "", "application id (required)")
	_ = cmd.MarkFlagRequired("app")

	return cmd
}

func newListUsersCmd(o *options) *cobra.Command {
	var appID string

	cmd := &cobra.Command{
		Use:   "list-users",
		Short: "List the users of an application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, o, func(ctx context.Context, b *backend) error {
				users, err := b.store.ListUsers(ctx, appID)
				if err != nil {
					return err
				}
				for _, u := range users {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", u.ID, u.UserName)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&appID, "app", "", "application id (required)")
	_ = cmd.MarkFlagRequired("app")

	return cmd
}
