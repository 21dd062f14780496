package userpool

import (
	"context"

	"github.com/goliatone/go-router"
)

var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the verified claims in the given context
func WithClaimsContext(r context.Context, claims *IDClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the verified claims from the standard context
func GetClaims(ctx context.Context) (*IDClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*IDClaims)
	return raw, ok
}

// GetRouterClaims extracts the verified claims from the router context
func GetRouterClaims(ctx router.Context, key string) (*IDClaims, bool) {
	if key == "" {
		key = "user" // Default key used by the groupware middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(*IDClaims)
	return claims, ok
}

// HasRole is a convenience check against the claims stored in the standard
// context. A missing or unverified context never passes.
func HasRole(ctx context.Context, minRole Role) bool {
	claims, ok := GetClaims(ctx)
	if !ok {
		return false
	}
	return RoleFromGroups([]string(claims.Groups)).IsAtLeast(minRole)
}
