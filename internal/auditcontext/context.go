package auditcontext

import (
	"context"
	"strings"
)

type contextKey string

const (
	requestIDKey contextKey = "audit.request_id"
	ipAddressKey contextKey = "audit.ip_address"
	userAgentKey contextKey = "audit.user_agent"
	actorRoleKey contextKey = "audit.actor_role"
)

func WithRequestID(ctx context.Context, value string) context.Context {
	return withValue(ctx, requestIDKey, value)
}

func WithIPAddress(ctx context.Context, value string) context.Context {
	return withValue(ctx, ipAddressKey, value)
}

func WithUserAgent(ctx context.Context, value string) context.Context {
	return withValue(ctx, userAgentKey, value)
}

// WithActorRole records the role the caller acts under.
func WithActorRole(ctx context.Context, value string) context.Context {
	return withValue(ctx, actorRoleKey, value)
}

func RequestID(ctx context.Context) string { return stringValue(ctx, requestIDKey) }
func IPAddress(ctx context.Context) string { return stringValue(ctx, ipAddressKey) }
func UserAgent(ctx context.Context) string { return stringValue(ctx, userAgentKey) }
func ActorRole(ctx context.Context) string { return stringValue(ctx, actorRoleKey) }

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
