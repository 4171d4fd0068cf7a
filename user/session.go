// Package user keeps the browser sessions of users that logged in through the portal.
package user

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const sessionCookieName = "sid"

// SessionData is what the portal remembers about a logged-in user.
type SessionData struct {
	Subject     string            `json:"subject"`
	AccessToken string            `json:"accessToken"`
	TokenExpiry time.Time         `json:"tokenExpiry"`
	Values      map[string]string `json:"values,omitempty"`
}

// HasValidToken reports whether the session holds an access token that has not expired.
func (d SessionData) HasValidToken(now time.Time) bool {
	return d.AccessToken != "" && (d.TokenExpiry.IsZero() || now.Before(d.TokenExpiry))
}

// SessionStore persists sessions by id. Get returns nil (without error) for unknown or expired sessions.
type SessionStore interface {
	Put(ctx context.Context, id string, data SessionData, expires time.Time) error
	Get(ctx context.Context, id string) (*SessionData, error)
	Delete(ctx context.Context, id string) error
}

type SessionManager struct {
	store    SessionStore
	lifetime time.Duration
	secure   bool
}

// NewSessionManager creates a session manager. Secure cookies are only sent over HTTPS, so they should be enabled
// whenever the portal is served over HTTPS.
func NewSessionManager(store SessionStore, lifetime time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		store:    store,
		lifetime: lifetime,
		secure:   secure,
	}
}

// Create creates a new session and sets a session cookie.
// The given values are stored in the session, which can be retrieved later using Get.
func (m *SessionManager) Create(ctx context.Context, response http.ResponseWriter, values SessionData) error {
	if values.Values == nil {
		values.Values = make(map[string]string)
	}
	id := uuid.NewString()
	expires := time.Now().Add(m.lifetime)
	if err := m.store.Put(ctx, id, values, expires); err != nil {
		return err
	}
	m.setCookie(response, id, expires)
	return nil
}

// Get retrieves the session for the given request.
// The session is retrieved using the session cookie.
// If no session is found, nil is returned.
func (m *SessionManager) Get(request *http.Request) *SessionData {
	sessionID := sessionCookie(request)
	if sessionID == "" {
		return nil
	}
	session, err := m.store.Get(request.Context(), sessionID)
	if err != nil {
		log.Ctx(request.Context()).Warn().Err(err).Msg("Failed to read user session")
		return nil
	}
	return session
}

func (m *SessionManager) Destroy(response http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	sessionID := sessionCookie(request)
	if sessionID != "" {
		log.Ctx(ctx).Info().Msgf("Destroying user session (subject=%s)", m.subjectOf(ctx, sessionID))
		if err := m.store.Delete(ctx, sessionID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("Failed to delete user session")
		}
	} else {
		log.Ctx(ctx).Warn().Msg("No session to destroy")
	}
	m.setCookie(response, "", time.Now().Add(-time.Minute))
}

func (m *SessionManager) subjectOf(ctx context.Context, sessionID string) string {
	session, _ := m.store.Get(ctx, sessionID)
	if session == nil {
		return ""
	}
	return session.Subject
}

func (m *SessionManager) setCookie(response http.ResponseWriter, sessionID string, expires time.Time) {
	http.SetCookie(response, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

func sessionCookie(request *http.Request) string {
	cookie, err := request.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
