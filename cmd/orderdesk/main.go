package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/orderdesk/config"
	"github.com/shashiranjanraj/orderdesk/internal/bootstrap"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "orderdesk",
	Short:         "orderdesk — food ordering backend",
	Long:          "orderdesk accepts customer orders, pushes them to kitchen staff in real time and tracks their status.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Server
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	// Database
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)

	// Workers
	rootCmd.AddCommand(queueWorkCmd)
	rootCmd.AddCommand(queueFailedCmd)

	// Push
	rootCmd.AddCommand(vapidGenerateCmd)
}

// settings loads config/app.json, .env and the environment.
func settings() (config.Settings, error) {
	if err := config.Load(); err != nil {
		return config.Settings{}, err
	}
	return config.Current(), nil
}

// bootDB opens only the database, for commands that need nothing else.
func bootDB(ctx context.Context) (*bootstrap.App, error) {
	s, err := settings()
	if err != nil {
		return nil, err
	}
	app := &bootstrap.App{Settings: s}
	if err := app.OpenDB(ctx); err != nil {
		return nil, err
	}
	return app, nil
}
