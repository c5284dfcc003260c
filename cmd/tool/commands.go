package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/application/provider"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/config"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/logger"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/transport/http/dto"
)

const dbTimeout = 10 * time.Second

// loadConfig is swapped in tests.
var loadConfig = config.Load

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "mwauth-tool",
		Short: "Operator commands for the MediaWiki OAuth auth provider",
		Long: `mwauth-tool inspects and prepares an mwauth-service deployment.

It reads the same environment (and .env file) as the service itself.`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	root.AddCommand(
		newCheckConfigCmd(),
		newLoginTypesCmd(),
		newMigrateCmd(),
		newAccountCmd(),
	)
	return root
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load the service configuration and print it with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg.Redacted())
		},
	}
}

func newLoginTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login-types",
		Short: "Print the login types the provider advertises",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), dto.NewLoginTypesResponse(provider.SupportedLoginTypes()))
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the accounts table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account <user_id>",
		Short: "Show a provisioned account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			repo := postgres.NewAccountRepo(db)

			ctx, cancel := context.WithTimeout(ctxOrBackground(cmd.Context()), dbTimeout)
			defer cancel()

			acct, err := repo.GetByUserID(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"user_id":         acct.UserID,
				"localpart":       acct.Localpart,
				"remote_username": acct.RemoteUsername,
				"created_at":      acct.CreatedAt.UTC().Format(time.RFC3339),
			})
		},
	}
}

// openDB connects to the postgres backend and makes sure the schema exists.
func openDB(ctx context.Context) (*sql.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.AccountBackend != config.BackendPostgres {
		return nil, fmt.Errorf("ACCOUNT_BACKEND is %q; this command needs %q", cfg.AccountBackend, config.BackendPostgres)
	}

	db, err := config.NewDB(cfg.DBAddr, cfg.DBDebug, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctxOrBackground(ctx), dbTimeout)
	defer cancel()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
