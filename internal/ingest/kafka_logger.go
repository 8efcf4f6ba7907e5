package ingest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

// kafkaLogger adapts kgo.Logger to slog for the one consumer client (and
// optional DLQ producer client) this package constructs, tagged with the
// given component name. Unlike the teacher's three franz-go client sites
// (ingest-svc, processor-svc, analyzer-svc's shared pkg/common logger),
// this package only ever needs LOG_LEVEL parsed once per client, so the
// level-string parsing and slog tagging are folded into one constructor
// instead of exposed as two separate helpers.
type kafkaLogger struct {
	logger *slog.Logger
	level  kgo.LogLevel
}

// NewKafkaLogger builds a kgo.Logger tagged component=<component>, parsing
// levelStr the same way common.InitSlog parses LOG_LEVEL.
func NewKafkaLogger(component, levelStr string) kgo.Logger {
	return &kafkaLogger{
		logger: slog.Default().With("component", component),
		level:  kafkaLogLevelFromString(levelStr),
	}
}

func (l *kafkaLogger) Level() kgo.LogLevel {
	return l.level
}

func (l *kafkaLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	if level == kgo.LogLevelNone {
		return
	}

	slogLevel := slog.LevelInfo
	switch level {
	case kgo.LogLevelDebug:
		slogLevel = slog.LevelDebug
	case kgo.LogLevelWarn:
		slogLevel = slog.LevelWarn
	case kgo.LogLevelError:
		slogLevel = slog.LevelError
	}

	l.logger.Log(context.Background(), slogLevel, msg, keyvals...)
}

func kafkaLogLevelFromString(levelStr string) kgo.LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return kgo.LogLevelDebug
	case "warn", "warning":
		return kgo.LogLevelWarn
	case "error":
		return kgo.LogLevelError
	case "none":
		return kgo.LogLevelNone
	default:
		return kgo.LogLevelInfo
	}
}
