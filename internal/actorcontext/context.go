// Package actorcontext carries the acting user through request contexts.
// Authentication itself is an external collaborator; callers supply the
// identity and this package only propagates it for audit fields.
package actorcontext

import "context"

type contextKey string

const (
	actorIDKey   contextKey = "actor_id"
	requestIDKey contextKey = "actor_request_id"
	ipAddressKey contextKey = "actor_ip_address"
	userAgentKey contextKey = "actor_user_agent"
)

// SystemActor is used when no caller identity was supplied.
const SystemActor = "system"

func WithActorID(ctx context.Context, actorID string) context.Context {
	if actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorIDKey, actorID)
}

// ActorID returns the acting user, falling back to SystemActor.
func ActorID(ctx context.Context) string {
	if ctx == nil {
		return SystemActor
	}
	value, _ := ctx.Value(actorIDKey).(string)
	if value == "" {
		return SystemActor
	}
	return value
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ipAddressKey, ip)
}

func IPAddressFromContext(ctx context.Context) string {
	value, _ := ctx.Value(ipAddressKey).(string)
	return value
}

func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	if userAgent == "" {
		return ctx
	}
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func UserAgentFromContext(ctx context.Context) string {
	value, _ := ctx.Value(userAgentKey).(string)
	return value
}
