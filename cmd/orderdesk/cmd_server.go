package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/orderdesk/internal/bootstrap"
	"github.com/shashiranjanraj/orderdesk/internal/server"
)

// orderdesk serve — start the HTTP server and background workers.
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run", "start"},
	Short:   "Start the HTTP server, real-time hub and queue workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := settings()
		if err != nil {
			return err
		}
		app, err := bootstrap.New(ctx, s)
		if err != nil {
			return err
		}
		defer app.Close()

		return server.Run(ctx, app)
	},
}

// orderdesk queue:work — process jobs without serving HTTP.
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start the queue workers and scheduler only",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := settings()
		if err != nil {
			return err
		}
		if s.QueueDriver == "memory" || s.QueueDriver == "" {
			return fmt.Errorf("queue:work needs a shared QUEUE_DRIVER (redis or rabbitmq), got %q", s.QueueDriver)
		}
		app, err := bootstrap.New(ctx, s)
		if err != nil {
			return err
		}
		defer app.Close()

		fmt.Printf("Queue worker started (%d workers). Press Ctrl+C to stop.\n", s.PushWorkers)
		for _, t := range app.Scheduler.List() {
			fmt.Println("  scheduled:", t)
		}
		return server.Work(ctx, app)
	},
}

// orderdesk route:list — print all registered routes.
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings()
		if err != nil {
			return err
		}
		// Routes do not depend on the backends; keep this offline.
		s.OrderStore, s.SubscriptionStore, s.QueueDriver = "memory", "memory", "memory"
		s.LogMongoURI = ""

		app, err := bootstrap.New(cmd.Context(), s)
		if err != nil {
			return err
		}
		defer app.Close()

		infos := app.Kernel.Routes()
		sort.Slice(infos, func(i, j int) bool {
			if infos[i].Path != infos[j].Path {
				return infos[i].Path < infos[j].Path
			}
			return infos[i].Method < infos[j].Method
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}
