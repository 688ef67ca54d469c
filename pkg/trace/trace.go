package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
)

type ctxKey struct{}

// HeaderName 请求/响应中携带 trace ID 的 HTTP header
const HeaderName = "X-Trace-ID"

// FieldName 日志与事件 payload 中使用的字段名
const FieldName = "trace_id"

// GenerateTraceID 生成一个新的 trace ID
func GenerateTraceID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// FromContext 从 context 中获取 trace_id
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(ctxKey{}).(string); ok {
		return traceID
	}
	return ""
}

// WithContext 将 trace_id 添加到 context 中
func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// FromHeaders 按优先级读取 X-Trace-ID / X-Request-ID，都为空时生成新的
func FromHeaders(get func(string) string) string {
	for _, name := range []string{HeaderName, "X-Request-ID"} {
		if v := strings.TrimSpace(get(name)); v != "" {
			return v
		}
	}
	return GenerateTraceID()
}
