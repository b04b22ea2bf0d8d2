// Package logger provides the structured, levelled logger used across cartsync.
//
// It is a thin layer over log/slog. Components that act on behalf of a signed-in
// user attach the user to the context once and every line they log carries it:
//
//	ctx = logger.IntoCtx(ctx, logger.L.With("user_id", uid))
//	logger.WithCtx(ctx).Info("cart flushed", "lines", 3)
//	// → time=... level=INFO msg="cart flushed" user_id=u_42 lines=3
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/shashiranjanraj/cartsync/config"
)

var L *slog.Logger

var (
	sinkMu sync.Mutex
	sink   *MongoSink
)

func init() {
	L = slog.New(baseHandler())
	slog.SetDefault(L)
}

func baseHandler() slog.Handler {
	switch config.AppEnv() {
	case "production", "prod":
		// structured JSON for log aggregators
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		return slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
}

// EnableMongo tees every record into MongoDB in addition to stdout.
// Call Shutdown before exit so buffered records are written.
func EnableMongo(uri, db string) error {
	s, err := NewMongoSink(uri, db, "logs")
	if err != nil {
		return fmt.Errorf("logger: enable mongo: %w", err)
	}

	sinkMu.Lock()
	defer sinkMu.Unlock()
	if sink != nil {
		sink.Close()
	}
	sink = s

	L = slog.New(NewFanout(baseHandler(), s))
	slog.SetDefault(L)
	return nil
}

// Shutdown flushes and closes the Mongo sink if one is enabled.
func Shutdown() {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if sink != nil {
		sink.Close()
		sink = nil
	}
}

// ─────────────────────────────────────────────
// Context-aware logger
// ─────────────────────────────────────────────

type ctxKey struct{}

// WithCtx returns the logger stored in ctx by IntoCtx, or the base logger.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
			return log
		}
	}
	return L
}

// IntoCtx stores log in ctx so downstream WithCtx calls return it.
func IntoCtx(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// ─────────────────────────────────────────────
// Short-hand helpers (use base logger)
// ─────────────────────────────────────────────

func Debug(msg string, args ...any) { L.Debug(msg, args...) }

func Info(msg string, args ...any) { L.Info(msg, args...) }

func Warn(msg string, args ...any) { L.Warn(msg, args...) }

func Error(msg string, args ...any) { L.Error(msg, args...) }
