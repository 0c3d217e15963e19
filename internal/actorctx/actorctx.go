package actorctx

import (
	"context"

	"github.com/geocoder89/tutorhub/internal/domain/user"
)

type ctxKey struct{}

// WithPrincipal attaches the authenticated caller to ctx so code below the
// HTTP layer (store calls, notifications, logs) can see who is acting.
func WithPrincipal(ctx context.Context, p user.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (user.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(user.Principal)
	return p, ok && p.ID != ""
}

func UserIDFrom(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	return p.ID, ok
}
