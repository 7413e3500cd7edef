package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rollcall/internal/config"
	"rollcall/internal/database"
	"rollcall/internal/identity"
	"rollcall/internal/logging"
	"rollcall/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "rollcall-admin",
		Short:         "Maintenance commands for the rollcall database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(advanceCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openDB loads configuration and connects with the schema up to date
func openDB(ctx context.Context) (*config.Config, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return cfg, db, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			slog.Info("Migrations completed successfully", "type", cfg.DatabaseType)
			return nil
		},
	}
}

func advanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Create the next event for activities whose event has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := service.NewEventService(db, cfg.Location()).AdvanceEvents(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d event(s)\n", n)
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export users, groups, activities and events to a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if output == "" {
				output = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
			}
			if dir := filepath.Dir(output); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}

			slog.Info("Exporting database", "path", output)
			if err := service.NewBackupService(db).Export(cmd.Context(), output); err != nil {
				return err
			}
			if info, err := os.Stat(output); err == nil {
				slog.Info("Export complete", "size_mb", fmt.Sprintf("%.2f", float64(info.Size())/1024/1024))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	return cmd
}

func importCmd() *cobra.Command {
	var (
		input   string
		clear   bool
		confirm bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a JSON backup; records that already exist are skipped",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("input file: %w", err)
			}

			_, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			backup := service.NewBackupService(db)

			if clear {
				if !confirm && !askYes(cmd, "WARNING: This will delete all existing data. Type 'yes' to confirm: ") {
					fmt.Fprintln(cmd.OutOrStdout(), "Import cancelled")
					return nil
				}
				slog.Info("Clearing existing data")
				if err := backup.Clear(cmd.Context()); err != nil {
					return err
				}
			}

			slog.Info("Importing database", "path", input)
			if err := backup.Import(cmd.Context(), input); err != nil {
				return err
			}
			slog.Info("Import complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input file path")
	cmd.Flags().BoolVar(&clear, "clear", false, "delete existing data before import (destructive)")
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "skip the confirmation prompt for --clear")
	cmd.MarkFlagRequired("input")
	return cmd
}

// tokenCmd mints a short-lived token for local testing. Only works with a
// shared HS256 secret.
func tokenCmd() *cobra.Command {
	var (
		externalID string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development identity token for a provider user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			verifier, err := identity.NewVerifier(cfg.IdentityJWTSecret, cfg.IdentityJWTPublicKey, cfg.IdentityIssuer)
			if err != nil {
				return err
			}
			token, err := verifier.Generate(externalID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&externalID, "user", "u", "", "identity provider user id")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.MarkFlagRequired("user")
	return cmd
}

func askYes(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}
