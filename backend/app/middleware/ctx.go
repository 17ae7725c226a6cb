package middleware

import (
	"context"

	jwtutil "vdi-fleet/backend/app/jwt"
)

func GetClaims(ctx context.Context) *jwtutil.Claims {
	if v := ctx.Value(ClaimsKey); v != nil {
		if c, ok := v.(*jwtutil.Claims); ok {
			return c
		}
	}
	return nil
}

// Actor returns the request's actor identifier, or "unknown" outside an
// authenticated context.
func Actor(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.Actor()
	}
	return "unknown"
}
