package actor

import "context"

type contextKey struct{}

// WithActor stores the request actor in the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the actor from context. Requests that never set one are
// treated as external pushes.
func FromContext(ctx context.Context) Actor {
	if ctx == nil {
		return ExternalSystem()
	}
	if a, ok := ctx.Value(contextKey{}).(Actor); ok {
		return a
	}
	return ExternalSystem()
}
