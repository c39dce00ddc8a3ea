package auth

import "context"

// Identity is the authenticated caller attached to a request.
type Identity struct {
	Subject string // user id
	Role    string // student|teacher|admin
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the caller's identity; ok is false when the request
// was not authenticated.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.Subject != ""
}
