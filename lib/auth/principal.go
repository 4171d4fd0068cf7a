package auth

import (
	"context"
	"errors"
	"slices"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// Principal is the authenticated caller of a request.
type Principal struct {
	// Subject is the identity provider's id of the user.
	Subject string
	// Roles are the realm roles granted to the user.
	Roles []string
	// AccessToken is the bearer token the request was authenticated with.
	AccessToken string
}

func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

type principalContextKeyType struct{}

var principalContextKey = principalContextKeyType{}

func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, &principal)
}

// PrincipalFromContext returns the authenticated caller, or ErrNotAuthenticated if the request wasn't authenticated.
func PrincipalFromContext(ctx context.Context) (*Principal, error) {
	principal, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok || principal == nil {
		return nil, ErrNotAuthenticated
	}
	return principal, nil
}
