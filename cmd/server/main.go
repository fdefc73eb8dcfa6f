package main

// cmd/server is the container entry point: it only serves. Use cmd/orderdesk
// for migrations, seeding and the other maintenance commands.

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/shashiranjanraj/orderdesk/config"
	"github.com/shashiranjanraj/orderdesk/internal/bootstrap"
	"github.com/shashiranjanraj/orderdesk/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.Load(); err != nil {
		return err
	}
	app, err := bootstrap.New(ctx, config.Current())
	if err != nil {
		return err
	}
	defer app.Close()

	return server.Run(ctx, app)
}
