package shared

import (
	"context"

	"github.com/google/uuid"
)

type identityContextKey struct{}

// Identity carries the authenticated user for the current request. The
// authentication protocol itself is handled upstream; by the time a request
// reaches this service the identity has already been verified.
type Identity struct {
	UserID uuid.UUID
}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// UserFromContext returns the authenticated user id, or ErrNotAuthenticated
// when the request carries no identity.
func UserFromContext(ctx context.Context) (uuid.UUID, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok || id.UserID == uuid.Nil {
		return uuid.Nil, ErrNotAuthenticated
	}
	return id.UserID, nil
}
