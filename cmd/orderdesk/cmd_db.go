package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/orderdesk/app/repositories"
	"github.com/shashiranjanraj/orderdesk/database/seeders"
	"github.com/shashiranjanraj/orderdesk/pkg/auth"
	"github.com/shashiranjanraj/orderdesk/pkg/migration"
	"github.com/shashiranjanraj/orderdesk/pkg/queue"
)

var failedLimitFlag int

// orderdesk migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootDB(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		fmt.Println("Running migrations…")
		n, err := migration.New(app.DB, os.Stdout).Run(cmd.Context())
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("Nothing to migrate.")
		}
		return nil
	},
}

// orderdesk migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:     "migrate:rollback",
	Aliases: []string{"migrate:down"},
	Short:   "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootDB(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		fmt.Println("Rolling back last batch…")
		n, err := migration.New(app.DB, os.Stdout).Rollback(cmd.Context())
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("Nothing to roll back.")
		}
		return nil
	},
}

// orderdesk migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootDB(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		rows, err := migration.New(app.DB, nil).Status(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "MIGRATION\tRAN\tBATCH")
		for _, st := range rows {
			ran, batch := "No", "-"
			if st.Ran {
				ran, batch = "Yes", fmt.Sprint(st.Batch)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", st.Name, ran, batch)
		}
		return w.Flush()
	},
}

// orderdesk seed — create or reset the configured staff account.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the configured staff account (resets its password)",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootDB(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if _, err := migration.New(app.DB, nil).Run(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Running seeders…")
		repo := repositories.NewGormStaffRepository(app.DB)
		return seeders.SeedStaff(cmd.Context(), repo, auth.BcryptVerifier{}, app.Settings)
	},
}

// orderdesk queue:failed
var queueFailedCmd = &cobra.Command{
	Use:   "queue:failed",
	Short: "List jobs that exhausted their retries",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootDB(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		rows, err := queue.ListFailed(cmd.Context(), app.DB, failedLimitFlag)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No failed jobs.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tJOB\tATTEMPTS\tFAILED AT\tERROR")
		for _, r := range rows {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", r.ID, r.JobType, r.Attempts, r.FailedAt.Format(time.RFC3339), r.Error)
		}
		return w.Flush()
	},
}

func init() {
	queueFailedCmd.Flags().IntVarP(&failedLimitFlag, "limit", "n", 50, "Maximum number of jobs to list")
}
