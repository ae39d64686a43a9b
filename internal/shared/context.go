package shared

import "context"

type callerContextKey struct{}

// Caller identifies the authenticated user behind a request.
type Caller struct {
	UserID  string
	Email   string
	TokenID string
}

// ContextWithCaller stores the caller in context.
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller from context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	return caller, ok && caller.UserID != ""
}
