package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"kitdash/pkg/trace"
)

var Log *zap.Logger

// NewLogger 创建生产环境 logger；KITDASH_LOG_LEVEL=debug 时输出 debug 日志
func NewLogger() *zap.Logger {
	return NewLoggerWithLevel(os.Getenv("KITDASH_LOG_LEVEL"))
}

// NewLoggerWithLevel 按指定级别创建 logger，level 为空时使用 info
func NewLoggerWithLevel(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// WithTrace 从 context 中提取 trace_id 并添加到 logger
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := trace.FromContext(ctx)
	if traceID != "" {
		return logger.With(zap.String(trace.TraceIDKey, traceID))
	}
	return logger
}
