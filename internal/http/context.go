package http

import (
	"context"

	"github.com/example/hallpass/internal/application"
)

type contextKey string

const (
	principalContextKey  contextKey = "principal"
	passIDContextKey     contextKey = "pass_id"
	resourceIDContextKey contextKey = "resource_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithPassID injects the pass identifier resolved from the request path.
func ContextWithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, passIDContextKey, passID)
}

// PassIDFromContext extracts a pass identifier previously associated with the context.
func PassIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(passIDContextKey).(string)
	return id, ok
}

// ContextWithResourceID injects the identifier of the administrative resource
// named by the request path.
func ContextWithResourceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, resourceIDContextKey, id)
}

// ResourceIDFromContext extracts a resource identifier previously associated
// with the context.
func ResourceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(resourceIDContextKey).(string)
	return id, ok
}
