package access

import "context"

type principalKey struct{}
type authzKey struct{}

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated principal, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// WithAuthorization returns a context carrying the resolved authorization
// context of the request.
func WithAuthorization(ctx context.Context, ac *AuthorizationContext) context.Context {
	return context.WithValue(ctx, authzKey{}, ac)
}

// AuthorizationFrom returns the resolved authorization context, or nil.
func AuthorizationFrom(ctx context.Context) *AuthorizationContext {
	ac, _ := ctx.Value(authzKey{}).(*AuthorizationContext)
	return ac
}

// ActorFrom returns the user id of the request's principal, or "" when the
// request is unauthenticated.
func ActorFrom(ctx context.Context) string {
	if p := PrincipalFrom(ctx); p != nil {
		return p.UserID
	}
	return ""
}
