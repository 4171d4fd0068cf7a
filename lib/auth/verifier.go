package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"github.com/zitadel/oidc/v3/pkg/op"
)

// TokenVerifier verifies a bearer token and returns the caller it was issued to.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (*Principal, error)
}

var _ TokenVerifier = &OIDCVerifier{}

// OIDCVerifier verifies JWT access tokens issued by an OpenID Connect provider, using the provider's published keys.
type OIDCVerifier struct {
	verifier *op.AccessTokenVerifier
}

// NewOIDCVerifier creates a verifier for tokens of the given issuer. Keys are fetched from jwksURL and cached.
func NewOIDCVerifier(issuer string, jwksURL string, httpClient *http.Client) *OIDCVerifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	keySet := rp.NewRemoteKeySet(httpClient, jwksURL)
	return &OIDCVerifier{
		verifier: op.NewAccessTokenVerifier(issuer, keySet),
	}
}

func (o OIDCVerifier) Verify(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := op.VerifyAccessToken[*oidc.AccessTokenClaims](ctx, accessToken, o.verifier)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("invalid access token: missing subject")
	}
	return &Principal{
		Subject:     claims.Subject,
		Roles:       realmRoles(claims.Claims),
		AccessToken: accessToken,
	}, nil
}

// realmRoles reads Keycloak's realm_access.roles claim.
func realmRoles(claims map[string]any) []string {
	realmAccess, ok := claims["realm_access"].(map[string]any)
	if !ok {
		return nil
	}
	values, ok := realmAccess["roles"].([]any)
	if !ok {
		return nil
	}
	var result []string
	for _, value := range values {
		if role, ok := value.(string); ok {
			result = append(result, role)
		}
	}
	return result
}
