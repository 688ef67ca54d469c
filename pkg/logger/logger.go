package logger

import (
	"context"

	"go.uber.org/zap"

	"projectportal/pkg/trace"
)

var Log *zap.Logger

// NewLogger 按环境创建 logger：local 使用开发模式，其余使用生产模式
func NewLogger(env string) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if env == "local" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
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
		return logger.With(zap.String(trace.FieldName, traceID))
	}
	return logger
}
