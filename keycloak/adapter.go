package keycloak

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/KLTN-2025/PTNTYTST5951/lib/logging"
	"github.com/KLTN-2025/PTNTYTST5951/lib/otel"
	"github.com/KLTN-2025/PTNTYTST5951/lib/slices"
	"github.com/KLTN-2025/PTNTYTST5951/lib/to"
	"github.com/Nerzal/gocloak/v13"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

var ErrGroupNotFound = errors.New("group not found")

const (
	// expirySkew is subtracted from the access token's expiry, so it's renewed before Keycloak rejects it.
	expirySkew = 15 * time.Second
	// defaultTokenTTL is used when the access token's expiry can't be determined.
	defaultTokenTTL = 60 * time.Second
)

var tokenSignatureAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.HS256, jose.HS384, jose.HS512,
	jose.EdDSA,
}

// TokenSource fetches a new service account access token.
type TokenSource func(ctx context.Context) (*oauth2.Token, error)

type session struct {
	accessToken string
	expiry      time.Time
}

// Adapter links users in Keycloak to their FHIR resources by managing group memberships and user attributes.
// It logs in as service account on first use and re-authenticates when the session expired or was rejected.
// A single Adapter should be shared by all requests.
type Adapter struct {
	api    AdminAPI
	realm  string
	login  TokenSource
	groups *ttlcache.Cache[string, string]
	tracer trace.Tracer
	now    func() time.Time

	mux     sync.RWMutex
	session *session
	logins  singleflight.Group
}

// New creates an Adapter that uses the gocloak client for the admin API and the client credentials grant to log in.
func New(config Config, httpClient *http.Client) *Adapter {
	client := gocloak.NewClient(config.BaseURL)
	if httpClient != nil {
		client.RestyClient().SetTransport(httpClient.Transport)
	}
	credentials := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     config.TokenURL(),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	login := func(ctx context.Context) (*oauth2.Token, error) {
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		return credentials.Token(ctx)
	}
	return NewWithAPI(client, config.Realm, login, config.GroupCacheTTL)
}

func NewWithAPI(api AdminAPI, realm string, login TokenSource, groupCacheTTL time.Duration) *Adapter {
	if groupCacheTTL <= 0 {
		groupCacheTTL = DefaultGroupCacheTTL
	}
	return &Adapter{
		api:    api,
		realm:  realm,
		login:  login,
		groups: ttlcache.New[string, string](ttlcache.WithTTL[string, string](groupCacheTTL)),
		tracer: otelapi.Tracer("keycloak"),
		now:    time.Now,
	}
}

// AssignUser links the user to the FHIR resource of the given role: it adds the user to the role's group and records
// the resource id in the role's user attribute.
func (a *Adapter) AssignUser(ctx context.Context, userID string, resourceID string, role Role) error {
	binding, ok := roleBindings[role]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	ctx = logging.WithFields(ctx, map[string]string{
		logging.FieldSubject:    userID,
		logging.FieldRole:       role.String(),
		logging.FieldResourceID: resourceID,
	})
	if err := a.AddUserToGroup(ctx, userID, binding.group); err != nil {
		return err
	}
	if err := a.MergeUserAttributes(ctx, userID, binding.attributeKey, []string{resourceID}); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Msg("Linked user to FHIR resource")
	return nil
}

func (a *Adapter) AddUserToGroup(ctx context.Context, userID string, groupName string) error {
	ctx, span := a.start(ctx, "AddUserToGroup", attribute.String(otel.KeycloakGroup, groupName))
	defer span.End()
	groupID, err := a.groupID(ctx, groupName)
	if err != nil {
		return otel.Error(span, err)
	}
	_, err = withAuthRetry(ctx, a, func(accessToken string) (struct{}, error) {
		return struct{}{}, a.api.AddUserToGroup(ctx, accessToken, a.realm, userID, groupID)
	})
	if err != nil {
		return otel.Error(span, fmt.Errorf("add user to group %s: %w", groupName, err))
	}
	return nil
}

func (a *Adapter) RemoveUserFromGroup(ctx context.Context, userID string, groupName string) error {
	ctx, span := a.start(ctx, "RemoveUserFromGroup", attribute.String(otel.KeycloakGroup, groupName))
	defer span.End()
	groupID, err := a.groupID(ctx, groupName)
	if err != nil {
		return otel.Error(span, err)
	}
	_, err = withAuthRetry(ctx, a, func(accessToken string) (struct{}, error) {
		return struct{}{}, a.api.DeleteUserFromGroup(ctx, accessToken, a.realm, userID, groupID)
	})
	if err != nil {
		return otel.Error(span, fmt.Errorf("remove user from group %s: %w", groupName, err))
	}
	return nil
}

// MergeUserAttributes adds the values to the user's attribute with the given key. Existing values are kept and come first,
// duplicates are dropped.
func (a *Adapter) MergeUserAttributes(ctx context.Context, userID string, key string, values []string) error {
	ctx, span := a.start(ctx, "MergeUserAttributes")
	defer span.End()
	user, err := withAuthRetry(ctx, a, func(accessToken string) (*gocloak.User, error) {
		return a.api.GetUserByID(ctx, accessToken, a.realm, userID)
	})
	if err != nil {
		return otel.Error(span, fmt.Errorf("read user: %w", err))
	}
	if user == nil {
		return otel.Error(span, fmt.Errorf("read user: user %s not found", userID))
	}
	attributes := map[string][]string{}
	if user.Attributes != nil {
		for k, v := range *user.Attributes {
			attributes[k] = v
		}
	}
	attributes[key] = slices.Union(attributes[key], values)
	user.Attributes = &attributes
	_, err = withAuthRetry(ctx, a, func(accessToken string) (struct{}, error) {
		return struct{}{}, a.api.UpdateUser(ctx, accessToken, a.realm, *user)
	})
	if err != nil {
		return otel.Error(span, fmt.Errorf("update user attributes: %w", err))
	}
	return nil
}

// groupID resolves the group by name: the first group in the search result with exactly that name.
func (a *Adapter) groupID(ctx context.Context, name string) (string, error) {
	if item := a.groups.Get(name); item != nil {
		return item.Value(), nil
	}
	groups, err := withAuthRetry(ctx, a, func(accessToken string) ([]*gocloak.Group, error) {
		return a.api.GetGroups(ctx, accessToken, a.realm, gocloak.GetGroupsParams{Search: to.Ptr(name)})
	})
	if err != nil {
		return "", fmt.Errorf("search group %s: %w", name, err)
	}
	for _, group := range groups {
		if group != nil && group.ID != nil && to.EmptyString(group.Name) == name {
			a.groups.Set(name, *group.ID, ttlcache.DefaultTTL)
			return *group.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrGroupNotFound, name)
}

// accessToken returns the current session's access token, logging in when there's no valid session.
// If stale is set, the session holding that token is discarded first.
func (a *Adapter) accessToken(ctx context.Context, stale string) (string, error) {
	a.mux.RLock()
	current := a.session
	a.mux.RUnlock()
	if current != nil && current.accessToken != stale && a.now().Before(current.expiry) {
		return current.accessToken, nil
	}
	// Callers replacing a rejected token must not join a login that may hand that token back
	result, err, _ := a.logins.Do("login:"+stale, func() (interface{}, error) {
		a.mux.Lock()
		if a.session != nil && (stale == "" || a.session.accessToken != stale) && a.now().Before(a.session.expiry) {
			// Another caller logged in while we were waiting
			defer a.mux.Unlock()
			return a.session.accessToken, nil
		}
		a.session = nil
		a.mux.Unlock()

		token, err := a.login(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("keycloak login: %w", err)
		}
		newSession := &session{
			accessToken: token.AccessToken,
			expiry:      a.expiryOf(token.AccessToken),
		}
		a.mux.Lock()
		a.session = newSession
		a.mux.Unlock()
		log.Ctx(ctx).Debug().Msgf("Logged in to Keycloak (session valid until %s)", newSession.expiry.Format(time.RFC3339))
		return newSession.accessToken, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// expiryOf derives the session expiry from the token's exp claim. The token is not verified: it was just received from
// the token endpoint over TLS.
func (a *Adapter) expiryOf(accessToken string) time.Time {
	token, err := jwt.ParseSigned(accessToken, tokenSignatureAlgorithms)
	if err == nil {
		var claims jwt.Claims
		if err = token.UnsafeClaimsWithoutVerification(&claims); err == nil && claims.Expiry != nil {
			return claims.Expiry.Time().Add(-expirySkew)
		}
	}
	return a.now().Add(defaultTokenTTL)
}

func (a *Adapter) start(ctx context.Context, operation string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	attributes = append(attributes,
		attribute.String(otel.KeycloakOperation, operation),
		attribute.String(otel.KeycloakRealm, a.realm),
	)
	return a.tracer.Start(ctx, "keycloak."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attributes...),
	)
}

// withAuthRetry invokes fn with the session's access token. If Keycloak rejects the token (401 or 403), the session is
// renewed and fn is invoked once more. The error of the second attempt is returned as-is.
func withAuthRetry[T any](ctx context.Context, a *Adapter, fn func(accessToken string) (T, error)) (T, error) {
	var empty T
	accessToken, err := a.accessToken(ctx, "")
	if err != nil {
		return empty, err
	}
	result, err := fn(accessToken)
	if err == nil || !isAuthError(err) {
		return result, err
	}
	log.Ctx(ctx).Info().Err(err).Msg("Keycloak rejected the service account session, logging in again")
	accessToken, err = a.accessToken(ctx, accessToken)
	if err != nil {
		return empty, err
	}
	return fn(accessToken)
}

func isAuthError(err error) bool {
	var apiErr *gocloak.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden
	}
	return false
}
