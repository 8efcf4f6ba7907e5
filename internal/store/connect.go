package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
)

// Connect opens a pgxpool against databaseURL with a tracer that forwards
// every query/connection event to slog tagged component=postgres, the same
// tracing the teacher wires into processor-svc's pool.
func Connect(ctx context.Context, databaseURL, logLevel string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.Tracer = newPgxTracer(logLevel)

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ConnectWithRetry retries Connect with a fixed delay, for the window
// between a TDRCluster binary starting and Postgres accepting connections
// in a freshly-provisioned environment (the run and ingest binaries both
// need this at startup, unlike the teacher's long-lived services which
// assume the database is already reachable by the time they boot).
func ConnectWithRetry(ctx context.Context, databaseURL, logLevel string, attempts int, delay time.Duration) (*pgxpool.Pool, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		db, err := Connect(ctx, databaseURL, logLevel)
		if err == nil {
			return db, nil
		}
		lastErr = err
		slog.Warn("failed to connect to database, retrying", "error", err, "attempt", i+1, "max_attempts", attempts)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// pgxSlogLogger adapts pgx's tracelog.Logger interface to slog, tagging
// every line component=postgres so it interleaves with the rest of a
// binary's structured log output.
type pgxSlogLogger struct {
	logger *slog.Logger
}

func newPgxTracer(levelStr string) *tracelog.TraceLog {
	return &tracelog.TraceLog{
		Logger:   &pgxSlogLogger{logger: slog.Default().With("component", "postgres")},
		LogLevel: pgxLogLevelFromString(levelStr),
	}
}

func (l *pgxSlogLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	if l == nil || l.logger == nil {
		return
	}

	slogLevel := slog.LevelInfo
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		slogLevel = slog.LevelDebug
	case tracelog.LogLevelInfo:
		slogLevel = slog.LevelInfo
	case tracelog.LogLevelWarn:
		slogLevel = slog.LevelWarn
	case tracelog.LogLevelError:
		slogLevel = slog.LevelError
	}

	if len(data) == 0 {
		l.logger.Log(ctx, slogLevel, msg)
		return
	}

	fields := make([]any, 0, len(data)*2)
	for key, value := range data {
		fields = append(fields, key, value)
	}
	l.logger.Log(ctx, slogLevel, msg, fields...)
}

func pgxLogLevelFromString(levelStr string) tracelog.LogLevel {
	switch strings.ToLower(levelStr) {
	case "trace":
		return tracelog.LogLevelTrace
	case "debug":
		return tracelog.LogLevelDebug
	case "warn", "warning":
		return tracelog.LogLevelWarn
	case "error":
		return tracelog.LogLevelError
	case "none":
		return tracelog.LogLevelNone
	default:
		return tracelog.LogLevelInfo
	}
}
