// Package logger provides the structured, levelled logger used across orderdesk.
//
// Handlers and services that have a context log through WithCtx so every line
// carries the request_id injected by middleware.Logger:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("order placed", "order_id", order.ID)
//	// → time=... level=INFO msg="order placed" request_id=a1b2c3d4 order_id=ORD-1718000000000
package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/shashiranjanraj/orderdesk/config"
)

var (
	L *slog.Logger

	mu          sync.Mutex
	base        slog.Handler
	activeMongo *MongoHandler
)

func init() {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}

	switch config.AppEnv() {
	case "production", "prod":
		opts.Level = slog.LevelInfo
		base = slog.NewJSONHandler(os.Stdout, opts)
	default:
		base = slog.NewTextHandler(os.Stdout, opts)
	}

	L = slog.New(base)
	slog.SetDefault(L)
}

// EnableMongo mirrors every log record into a MongoDB collection in addition
// to stdout. Call Close at shutdown to flush the pending batch.
func EnableMongo(uri, db, collection string) error {
	h, err := NewMongoHandler(uri, db, collection)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	activeMongo = h
	L = slog.New(NewMultiHandler(base, h))
	slog.SetDefault(L)
	return nil
}

// Close flushes asynchronous sinks. Safe to call when none are configured.
func Close() {
	mu.Lock()
	h := activeMongo
	activeMongo = nil
	mu.Unlock()

	if h != nil {
		h.Close()
	}
}

type ctxKey struct{}

// WithCtx returns the per-request logger stored in ctx, or the base logger.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
			return log
		}
	}
	return L
}

// InjectLogger stores a request-scoped logger into ctx.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
