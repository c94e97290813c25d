package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rollt/rollt-server/internal/app"
	"github.com/rollt/rollt-server/internal/config"
	"github.com/rollt/rollt-server/internal/repository"
	"github.com/rollt/rollt-server/internal/tools/obscheck"
)

func main() {
	root := &cobra.Command{
		Use:           "rollt",
		Short:         "Rollt account security and session server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var envFile string
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load before reading config")

	root.AddCommand(serveCmd(&envFile))
	root.AddCommand(migrateCmd(&envFile))
	root.AddCommand(checkCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(envFile string) (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return config.Load()
}

func serveCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}

func migrateCmd(envFile *string) *cobra.Command {
	var cleanupSessions bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			db, err := repository.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}()

			if err := repository.Migrate(db); err != nil {
				return err
			}
			fmt.Println("schema migrated")

			if cleanupSessions {
				deleted, err := repository.NewSessionRepository(db).CleanupExpired()
				if err != nil {
					return fmt.Errorf("cleanup sessions: %w", err)
				}
				fmt.Printf("deleted %d expired sessions\n", deleted)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cleanupSessions, "cleanup-sessions", false, "delete sessions past their expiry")
	return cmd
}

func checkCmd() *cobra.Command {
	var baseURL string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe a running server's health and auth surface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return obscheck.New(baseURL, timeout, os.Stdout).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "base URL of the server to probe")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall probe timeout")
	return cmd
}
