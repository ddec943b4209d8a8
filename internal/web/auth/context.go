package auth

import (
	"context"

	"github.com/google/uuid"

	webcontext "github.com/citymind/urbanlink/internal/web/context"
)

// Principal is re-exported so callers need only this package
type Principal = webcontext.Principal

// GetPrincipal retrieves the authenticated caller from the context
func GetPrincipal(ctx context.Context) *Principal {
	return webcontext.GetPrincipal(ctx)
}

// GetUserID returns the caller's profile id, or uuid.Nil when anonymous
func GetUserID(ctx context.Context) uuid.UUID {
	if p := webcontext.GetPrincipal(ctx); p != nil {
		return p.ID
	}
	return uuid.Nil
}

// SetPrincipal adds the authenticated caller to the context
func SetPrincipal(ctx context.Context, p *Principal) context.Context {
	return webcontext.SetPrincipal(ctx, p)
}
