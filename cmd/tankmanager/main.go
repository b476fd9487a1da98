// Package main provides the entry point for the tankmanager service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bher20/tankmanager/internal/amerigas"
	"github.com/bher20/tankmanager/internal/api"
	"github.com/bher20/tankmanager/internal/auth"
	"github.com/bher20/tankmanager/internal/config"
	"github.com/bher20/tankmanager/internal/cron"
	"github.com/bher20/tankmanager/internal/migrate"
	"github.com/bher20/tankmanager/internal/propane"
	"github.com/bher20/tankmanager/internal/storage"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tankmanager",
		Short:         "Propane tank account monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8000"
			}

			mux, err := api.NewMux(cmd.Context())
			if err != nil {
				return err
			}

			addr := ":" + port
			log.Printf("tankmanager listening on %s", addr)
			return http.ListenAndServe(addr, mux)
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background refresh worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cron.Run(ctx, config.FromEnv())
		},
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the portal once and print the readings as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if cfg.Username == "" || cfg.Password == "" {
				return fmt.Errorf("TANKMANAGER_USERNAME and TANKMANAGER_PASSWORD are required")
			}

			client := amerigas.NewClient(cfg.Username, cfg.Password,
				amerigas.WithTimeout(cfg.FetchTimeout))
			svc := propane.NewService(client, cfg.AccountKey, cfg.Location())
			svc.SetTankSizeOverride(cfg.TankSizeGallons)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout)
			defer cancel()
			readings, err := svc.Refresh(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(readings)
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API users",
	}

	var role, password string
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an API user",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("TANKMANAGER_USER_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("--password or TANKMANAGER_USER_PASSWORD is required")
			}

			cfg := config.FromEnv()
			st, err := storage.Open(c.Context(), storage.Config{
				Driver: cfg.StorageDriver,
				DSN:    cfg.StorageDSN,
			})
			if err != nil {
				return err
			}
			defer st.Close()

			authSvc, err := auth.NewService(st)
			if err != nil {
				return err
			}
			u, err := authSvc.Register(c.Context(), args[0], password, role)
			if err != nil {
				return err
			}
			fmt.Printf("created user %s (role %s)\n", u.Username, u.Role)
			return nil
		},
	}
	create.Flags().StringVar(&role, "role", "viewer", "user role (admin, editor, viewer)")
	create.Flags().StringVar(&password, "password", "", "password (or TANKMANAGER_USER_PASSWORD)")
	cmd.AddCommand(create)

	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	run := func(fn func(context.Context, string, string) error) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if cfg.StorageDriver == "memory" {
				return fmt.Errorf("memory storage has no migrations")
			}
			return fn(c.Context(), cfg.StorageDriver, cfg.StorageDSN)
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply pending migrations", RunE: run(migrate.Up)},
		&cobra.Command{Use: "down", Short: "Roll back the last migration", RunE: run(migrate.Down)},
		&cobra.Command{Use: "status", Short: "Show migration status", RunE: run(migrate.Status)},
	)

	return cmd
}
