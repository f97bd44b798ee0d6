package core

import (
	"context"
	"slices"
)

type contextKey string

const ctxKeyPrincipal contextKey = "import_principal"

// ContextWithPrincipal records the authenticated caller on ctx.
func ContextWithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, principal)
}

// PrincipalFromContext returns the authenticated caller, or "" if none.
func PrincipalFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyPrincipal).(string); ok {
		return v
	}
	return ""
}

// RequirePrincipal returns a PermissionFunc granting access to authenticated
// callers. When allowed is non-empty only the listed principals pass.
func RequirePrincipal(allowed []string) PermissionFunc {
	return func(ctx context.Context) bool {
		p := PrincipalFromContext(ctx)
		if p == "" {
			return false
		}
		return len(allowed) == 0 || slices.Contains(allowed, p)
	}
}
