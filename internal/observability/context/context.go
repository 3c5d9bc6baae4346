// Package context carries request correlation values (request id, caller identity) through
// context.Context so logs, traces and audit entries agree on them.
package context

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorIDKey
	actorRoleKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithActor stores the verified caller identity and the role it acts in for the request.
func WithActor(ctx context.Context, role, identity string) context.Context {
	if identity == "" {
		return ctx
	}
	ctx = context.WithValue(ctx, actorIDKey, identity)
	if role != "" {
		ctx = context.WithValue(ctx, actorRoleKey, role)
	}
	return ctx
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	role, _ := ctx.Value(actorRoleKey).(string)
	identity, _ := ctx.Value(actorIDKey).(string)
	return role, identity
}
