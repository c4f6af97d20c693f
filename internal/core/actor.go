package core

import "context"

// SystemActor is recorded when no authenticated user is attached to a request.
const SystemActor = "system"

type actorKey struct{}

// WithActor attaches the acting user to ctx for audit columns.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting user, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if v, _ := ctx.Value(actorKey{}).(string); v != "" {
		return v
	}
	return SystemActor
}
