package auditcontext

import (
	"context"
	"strings"
)

type key int

const (
	requestIDKey key = iota
	ipAddressKey
	userAgentKey
)

func WithRequestID(ctx context.Context, v string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(v))
}

func WithIPAddress(ctx context.Context, v string) context.Context {
	return context.WithValue(ctx, ipAddressKey, strings.TrimSpace(v))
}

func WithUserAgent(ctx context.Context, v string) context.Context {
	return context.WithValue(ctx, userAgentKey, strings.TrimSpace(v))
}

func RequestID(ctx context.Context) string { return get(ctx, requestIDKey) }
func IPAddress(ctx context.Context) string { return get(ctx, ipAddressKey) }
func UserAgent(ctx context.Context) string { return get(ctx, userAgentKey) }

func get(ctx context.Context, k key) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(k).(string)
	return v
}
