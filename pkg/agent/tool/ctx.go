package tool

import "context"

// UpdateFunc posts a progress message during tool execution. The engine uses
// it to trace what each primitive does in real time.
type UpdateFunc func(ctx context.Context, message string)

type updateKey struct{}

type actorKey struct{}

// WithUpdate returns a new context that carries the given UpdateFunc.
func WithUpdate(ctx context.Context, fn UpdateFunc) context.Context {
	return context.WithValue(ctx, updateKey{}, fn)
}

// Update calls the UpdateFunc stored in ctx with the given message.
// If no UpdateFunc is present in ctx, the call is a no-op.
func Update(ctx context.Context, message string) {
	if fn, ok := ctx.Value(updateKey{}).(UpdateFunc); ok {
		fn(ctx, message)
	}
}

// WithActor returns a context carrying the identifier of the acting entity
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Actor returns the acting entity stored in ctx, or "" when absent
func Actor(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
