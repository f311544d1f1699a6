package grpcserver

import (
	"context"

	"github.com/and161185/ironkeep/internal/service"
)

type ctxKey string

const principalKey ctxKey = "ik.principal"

// WithPrincipal stores the authenticated device in context.
func WithPrincipal(ctx context.Context, p service.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromCtx fetches the authenticated device from context.
func PrincipalFromCtx(ctx context.Context) (service.Principal, bool) {
	p, ok := ctx.Value(principalKey).(service.Principal)
	return p, ok && p.AccountID != ""
}
