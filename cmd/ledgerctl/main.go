// Command ledgerctl runs ledger housekeeping: schema migration, master data
// seeding, stock reconciliation and operator tokens.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"syntra-ledger/config"
	"syntra-ledger/internal/database"
	"syntra-ledger/internal/utils"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Billing ledger housekeeping",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		},
	}
	cmd.AddCommand(migrateCmd(), seedCmd(), reconcileCmd(), tokenCmd())
	return cmd
}

func openDB() (*gorm.DB, config.Config, error) {
	cfg := config.LoadConfig()
	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		return nil, cfg, fmt.Errorf("connect: %w", err)
	}
	return db, cfg, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDB()
			if err != nil {
				return err
			}
			if err := database.MigrateLedgerDB(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			slog.Info("ledger schema migrated")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		userID   int64
		username string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is required")
			}
			token, exp, err := utils.GenerateToken([]byte(cfg.Auth.JWTSecret), userID, username, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			slog.Info("token issued", "user_id", userID, "expires_at", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "Acting user id")
	cmd.Flags().StringVar(&username, "username", "", "Acting user name")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
