package proxy

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/KLTN-2025/PTNTYTST5951/lib/httpserv"
	"github.com/KLTN-2025/PTNTYTST5951/lib/otel"
	"github.com/KLTN-2025/PTNTYTST5951/user"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zitadel/oidc/v3/pkg/client/rp"
	zitadelHTTP "github.com/zitadel/oidc/v3/pkg/http"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

const clockSkew = 5 * time.Second

// Login implements the OpenID Connect authorization code flow against the identity provider. A successful login
// stores the user's access token in a new session, which the proxy then uses to authenticate upstream requests.
type Login struct {
	issuer       string
	clientID     string
	clientSecret string
	redirectURL  string
	postLoginURL string
	scopes       []string
	sessions     *user.SessionManager
	cookies      *zitadelHTTP.CookieHandler
	httpClient   *http.Client

	mux      sync.Mutex
	provider rp.RelyingParty
}

// NewLogin creates the login handlers. The provider is discovered on first use, so the portal can start while the
// identity provider is unavailable.
func NewLogin(issuer string, clientID string, clientSecret string, publicURL string, config LoginConfig, sessions *user.SessionManager, secureCookies bool) (*Login, error) {
	hashKey, encryptKey, err := cookieKeys(config.StateCookieSecret)
	if err != nil {
		return nil, err
	}
	var cookieOpts []zitadelHTTP.CookieHandlerOpt
	if !secureCookies {
		cookieOpts = append(cookieOpts, zitadelHTTP.WithUnsecure())
	}
	return &Login{
		issuer:       issuer,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  publicURL + "/auth/callback",
		postLoginURL: config.PostLoginURL,
		scopes:       config.Scopes,
		sessions:     sessions,
		cookies:      zitadelHTTP.NewCookieHandler(hashKey, encryptKey, cookieOpts...),
		httpClient:   otel.NewTracedHTTPClient("login"),
	}, nil
}

func (l *Login) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/login", l.handleLogin)
	mux.HandleFunc("GET /auth/callback", l.handleCallback)
	mux.HandleFunc("GET /auth/logout", l.handleLogout)
}

func (l *Login) handleLogin(response http.ResponseWriter, request *http.Request) {
	provider, err := l.getProvider(request.Context())
	if err != nil {
		httpserv.WriteError(request.Context(), response, err, "login")
		return
	}
	rp.AuthURLHandler(uuid.NewString, provider)(response, request)
}

func (l *Login) handleCallback(response http.ResponseWriter, request *http.Request) {
	provider, err := l.getProvider(request.Context())
	if err != nil {
		httpserv.WriteError(request.Context(), response, err, "login callback")
		return
	}
	rp.CodeExchangeHandler(func(httpResponse http.ResponseWriter, httpRequest *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims], _ string, _ rp.RelyingParty) {
		ctx := httpRequest.Context()
		sessionData := user.SessionData{
			Subject:     tokens.IDTokenClaims.GetSubject(),
			AccessToken: tokens.AccessToken,
			TokenExpiry: tokens.Expiry,
		}
		if err := l.sessions.Create(ctx, httpResponse, sessionData); err != nil {
			httpserv.WriteError(ctx, httpResponse, fmt.Errorf("create session: %w", err), "login callback")
			return
		}
		log.Ctx(ctx).Info().Msgf("User logged in (subject=%s)", sessionData.Subject)
		http.Redirect(httpResponse, httpRequest, l.postLoginURL, http.StatusFound)
	}, provider)(response, request)
}

func (l *Login) handleLogout(response http.ResponseWriter, request *http.Request) {
	l.sessions.Destroy(response, request)
	http.Redirect(response, request, l.postLoginURL, http.StatusFound)
}

func (l *Login) getProvider(ctx context.Context) (rp.RelyingParty, error) {
	l.mux.Lock()
	defer l.mux.Unlock()
	if l.provider != nil {
		return l.provider, nil
	}
	options := []rp.Option{
		rp.WithCookieHandler(l.cookies),
		rp.WithVerifierOpts(rp.WithIssuedAtOffset(clockSkew)),
		rp.WithHTTPClient(l.httpClient),
		rp.WithUnauthorizedHandler(func(httpResponse http.ResponseWriter, httpRequest *http.Request, desc string, _ string) {
			httpserv.WriteError(httpRequest.Context(), httpResponse, fmt.Errorf("%w: %s", httpserv.NewErrorWithCode("Login failed", http.StatusUnauthorized), desc), "login callback")
		}),
	}
	provider, err := rp.NewRelyingPartyOIDC(ctx, l.issuer, l.clientID, l.clientSecret, l.redirectURL, l.scopes, options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", httpserv.NewErrorWithCode("Identity provider unavailable", http.StatusBadGateway), err)
	}
	l.provider = provider
	return provider, nil
}

func cookieKeys(secret string) ([]byte, []byte, error) {
	if secret == "" {
		log.Warn().Msg("No state cookie secret configured, generating a random one")
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, nil, fmt.Errorf("generate state cookie secret: %w", err)
		}
		secret = string(key)
	}
	hashKey := sha256.Sum256([]byte("hash:" + secret))
	encryptKey := sha256.Sum256([]byte("encrypt:" + secret))
	return hashKey[:], encryptKey[:], nil
}
