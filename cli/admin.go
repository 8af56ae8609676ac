package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Skryldev/people/controller"
	"github.com/Skryldev/people/db"
	"github.com/Skryldev/people/internal/errors"
	"github.com/Skryldev/people/models"
	"github.com/Skryldev/people/repo"
)

// usageError is bad command line input. It exits like a domain error.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func isUsage(err error) bool {
	var ue *usageError
	return errors.As(err, &ue)
}

func (a *app) actionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the actions the account may run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, s, err := a.login(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s (%s)\n", s.Username, s.Role)
			for _, action := range s.Actions() {
				fmt.Fprintf(a.stdout, "  %s\n", action)
			}
			return nil
		},
	}
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the SQL schema and seed the accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			mg, err := db.NewMigrator(ctx, a.cfg.SQL, a.logger)
			if err != nil {
				return err
			}
			defer mg.Close()

			if err := mg.Up(ctx); err != nil {
				return err
			}
			version, dirty, err := mg.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "schema version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}

func (a *app) hashPasswordCmd() *cobra.Command {
	var account, role string
	cmd := &cobra.Command{
		Use:   "hash-password PASSWORD",
		Short: "Print the bcrypt hash of a password, or store it for an account (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := controller.HashPassword(args[0])
			if err != nil {
				return err
			}
			if account == "" {
				fmt.Fprintln(a.stdout, hash)
				return nil
			}

			r := models.Role(role)
			if r != models.RoleAdmin && r != models.RoleUser {
				return usageErrorf("role %q: want admin or user", role)
			}
			ctx := cmd.Context()
			_, s, err := a.login(ctx)
			if err != nil {
				return err
			}
			if s.Role != models.RoleAdmin {
				return errors.WithStack(&controller.DomainError{Sentinel: controller.ErrForbidden, Detail: "hash-password"})
			}
			err = repo.NewCredentialRepo(a.credentials).SetPassword(ctx, r, account, hash)
			if db.IsNotFound(err) {
				return usageErrorf("no %s account named %q", r, account)
			}
			if err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "password replaced",
				slog.String("account", account),
				slog.String("role", string(r)),
				slog.String("by", s.Username),
			)
			fmt.Fprintf(a.stdout, "stored hash for %s %s\n", r, account)
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "store the hash as this account's password")
	cmd.Flags().StringVar(&role, "role", string(models.RoleUser), "role of --account: admin or user")
	return cmd
}
