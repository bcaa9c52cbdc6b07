package agent

import (
	"context"
	"log/slog"
)

type traceIDKey struct{}

// WithTraceID 将 TraceID 注入 context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// GetTraceID 从 context 获取 TraceID
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}

// traceAttr 返回用于日志的 trace_id 字段
func traceAttr(ctx context.Context) slog.Attr {
	return slog.String("trace_id", GetTraceID(ctx))
}
