package keycloak

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KLTN-2025/PTNTYTST5951/keycloak/mock"
	"github.com/KLTN-2025/PTNTYTST5951/lib/to"
	"github.com/Nerzal/gocloak/v13"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/oauth2"
)

const realm = "beetamin"

func signedToken(t *testing.T, expiry time.Time) string {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte("0123456789abcdef0123456789abcdef")}, nil)
	require.NoError(t, err)
	token, err := jwt.Signed(signer).Claims(jwt.Claims{
		ID:     uuid.NewString(),
		Expiry: jwt.NewNumericDate(expiry),
	}).Serialize()
	require.NoError(t, err)
	return token
}

// countingLogin returns a TokenSource handing out opaque tokens token-1, token-2, ...
func countingLogin(calls *atomic.Int32) TokenSource {
	return func(_ context.Context) (*oauth2.Token, error) {
		n := calls.Add(1)
		return &oauth2.Token{AccessToken: "token-" + string(rune('0'+n))}, nil
	}
}

func TestAdapter_AssignUser(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	api := mock.NewMockAdminAPI(ctrl)
	var logins atomic.Int32
	adapter := NewWithAPI(api, realm, countingLogin(&logins), 0)

	api.EXPECT().GetGroups(gomock.Any(), "token-1", realm, gocloak.GetGroupsParams{Search: to.Ptr("Patients")}).
		Return([]*gocloak.Group{
			{ID: to.Ptr("g-2"), Name: to.Ptr("Patients-archive")},
			{ID: to.Ptr("g-1"), Name: to.Ptr("Patients")},
		}, nil)
	api.EXPECT().AddUserToGroup(gomock.Any(), "token-1", realm, "user-1", "g-1").Return(nil)
	api.EXPECT().GetUserByID(gomock.Any(), "token-1", realm, "user-1").
		Return(&gocloak.User{
			ID:         to.Ptr("user-1"),
			Attributes: &map[string][]string{"patientId": {"p-0"}, "locale": {"vi"}},
		}, nil)
	api.EXPECT().UpdateUser(gomock.Any(), "token-1", realm, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ string, user gocloak.User) error {
			assert.Equal(t, map[string][]string{"patientId": {"p-0", "p-1"}, "locale": {"vi"}}, *user.Attributes)
			return nil
		})

	err := adapter.AssignUser(ctx, "user-1", "p-1", RolePatient)

	require.NoError(t, err)
	assert.Equal(t, int32(1), logins.Load())
}

func TestAdapter_AssignUser_unknownRole(t *testing.T) {
	adapter := NewWithAPI(mock.NewMockAdminAPI(gomock.NewController(t)), realm, nil, 0)
	err := adapter.AssignUser(context.Background(), "user-1", "p-1", "nurse")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestAdapter_AddUserToGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("group id is cached", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		api := mock.NewMockAdminAPI(ctrl)
		var logins atomic.Int32
		adapter := NewWithAPI(api, realm, countingLogin(&logins), time.Minute)
		api.EXPECT().GetGroups(gomock.Any(), gomock.Any(), realm, gomock.Any()).
			Return([]*gocloak.Group{{ID: to.Ptr("g-1"), Name: to.Ptr("Practitioners")}}, nil).Times(1)
		api.EXPECT().AddUserToGroup(gomock.Any(), gomock.Any(), realm, gomock.Any(), "g-1").Return(nil).Times(2)
		api.EXPECT().DeleteUserFromGroup(gomock.Any(), gomock.Any(), realm, "user-1", "g-1").Return(nil)

		require.NoError(t, adapter.AddUserToGroup(ctx, "user-1", "Practitioners"))
		require.NoError(t, adapter.AddUserToGroup(ctx, "user-2", "Practitioners"))
		require.NoError(t, adapter.RemoveUserFromGroup(ctx, "user-1", "Practitioners"))
	})
	t.Run("group not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		api := mock.NewMockAdminAPI(ctrl)
		var logins atomic.Int32
		adapter := NewWithAPI(api, realm, countingLogin(&logins), 0)
		api.EXPECT().GetGroups(gomock.Any(), gomock.Any(), realm, gomock.Any()).
			Return([]*gocloak.Group{{ID: to.Ptr("g-1"), Name: to.Ptr("Admins-old")}}, nil)

		err := adapter.AddUserToGroup(ctx, "user-1", "Admins")

		require.ErrorIs(t, err, ErrGroupNotFound)
		assert.EqualError(t, err, "group not found: Admins")
	})
	t.Run("remove from unknown group", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		api := mock.NewMockAdminAPI(ctrl)
		var logins atomic.Int32
		adapter := NewWithAPI(api, realm, countingLogin(&logins), 0)
		api.EXPECT().GetGroups(gomock.Any(), gomock.Any(), realm, gomock.Any()).Return(nil, nil)

		err := adapter.RemoveUserFromGroup(ctx, "user-1", "Admins")

		require.ErrorIs(t, err, ErrGroupNotFound)
	})
}

func TestAdapter_MergeUserAttributes(t *testing.T) {
	ctx := context.Background()
	t.Run("user without attributes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		api := mock.NewMockAdminAPI(ctrl)
		var logins atomic.Int32
		adapter := NewWithAPI(api, realm, countingLogin(&logins), 0)
		api.EXPECT().GetUserByID(gomock.Any(), gomock.Any(), realm, "user-1").Return(&gocloak.User{ID: to.Ptr("user-1")}, nil)
		api.EXPECT().UpdateUser(gomock.Any(), gomock.Any(), realm, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, _ string, user gocloak.User) error {
				assert.Equal(t, map[string][]string{"practitionerId": {"a", "b"}}, *user.Attributes)
				return nil
			})

		require.NoError(t, adapter.MergeUserAttributes(ctx, "user-1", "practitionerId", []string{"a", "b", "a"}))
	})
	t.Run("read fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		api := mock.NewMockAdminAPI(ctrl)
		var logins atomic.Int32
		adapter := NewWithAPI(api, realm, countingLogin(&logins), 0)
		api.EXPECT().GetUserByID(gomock.Any(), gomock.Any(), realm, "user-1").Return(nil, &gocloak.APIError{Code: http.StatusNotFound, Message: "404 Not Found"})

		err := adapter.MergeUserAttributes(ctx, "user-1", "patientId", []string{"a"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "read user")
	})
}

func TestAdapter_withAuthRetry(t *testing.T) {
	ctx := context.Background()
	unauthorized := &gocloak.APIError{Code: http.StatusUnauthorized, Message: "401 Unauthorized"}
	forbidden := &gocloak.APIError{Code: http.StatusForbidden, Message: "403 Forbidden"}

	t.Run("re-authenticates once on 401", func(t *testing.T) {
		var logins atomic.Int32
		adapter := NewWithAPI(nil, realm, countingLogin(&logins), 0)
		var tokens []string
		result, err := withAuthRetry(ctx, adapter, func(accessToken string) (string, error) {
			tokens = append(tokens, accessToken)
			if len(tokens) == 1 {
				return "", unauthorized
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, []string{"token-1", "token-2"}, tokens)
		assert.Equal(t, int32(2), logins.Load())
	})
	t.Run("second rejection is returned unmodified", func(t *testing.T) {
		var logins atomic.Int32
		adapter := NewWithAPI(nil, realm, countingLogin(&logins), 0)
		calls := 0
		_, err := withAuthRetry(ctx, adapter, func(accessToken string) (struct{}, error) {
			calls++
			if calls == 1 {
				return struct{}{}, unauthorized
			}
			return struct{}{}, forbidden
		})
		assert.Same(t, forbidden, err)
		assert.Equal(t, 2, calls)
	})
	t.Run("other errors are not retried", func(t *testing.T) {
		var logins atomic.Int32
		adapter := NewWithAPI(nil, realm, countingLogin(&logins), 0)
		calls := 0
		serverErr := &gocloak.APIError{Code: http.StatusInternalServerError}
		_, err := withAuthRetry(ctx, adapter, func(accessToken string) (struct{}, error) {
			calls++
			return struct{}{}, serverErr
		})
		assert.Same(t, serverErr, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, int32(1), logins.Load())
	})
	t.Run("login failure", func(t *testing.T) {
		adapter := NewWithAPI(nil, realm, func(context.Context) (*oauth2.Token, error) {
			return nil, errors.New("invalid_client")
		}, 0)
		_, err := withAuthRetry(ctx, adapter, func(accessToken string) (struct{}, error) {
			t.Fatal("must not be called")
			return struct{}{}, nil
		})
		assert.EqualError(t, err, "keycloak login: invalid_client")
	})
}

func TestAdapter_accessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("session is reused until it expires", func(t *testing.T) {
		now := time.Now()
		var logins atomic.Int32
		adapter := NewWithAPI(nil, realm, func(context.Context) (*oauth2.Token, error) {
			logins.Add(1)
			return &oauth2.Token{AccessToken: signedToken(t, now.Add(5*time.Minute))}, nil
		}, 0)
		adapter.now = func() time.Time { return now }

		first, err := adapter.accessToken(ctx, "")
		require.NoError(t, err)
		second, err := adapter.accessToken(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), logins.Load())

		// 15 seconds before the token expires, the session is renewed
		adapter.now = func() time.Time { return now.Add(5*time.Minute - 10*time.Second) }
		_, err = adapter.accessToken(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, int32(2), logins.Load())
	})
	t.Run("concurrent callers share a single login", func(t *testing.T) {
		var logins atomic.Int32
		adapter := NewWithAPI(nil, realm, func(context.Context) (*oauth2.Token, error) {
			logins.Add(1)
			time.Sleep(50 * time.Millisecond)
			return &oauth2.Token{AccessToken: "shared"}, nil
		}, 0)
		wg := sync.WaitGroup{}
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				token, err := adapter.accessToken(ctx, "")
				assert.NoError(t, err)
				assert.Equal(t, "shared", token)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), logins.Load())
	})
	t.Run("caller replacing a rejected token does not share a login returning that token", func(t *testing.T) {
		var logins atomic.Int32
		loginStarted := make(chan struct{})
		releaseLogin := make(chan struct{})
		adapter := NewWithAPI(nil, realm, func(context.Context) (*oauth2.Token, error) {
			if logins.Add(1) == 1 {
				close(loginStarted)
				<-releaseLogin
				return &oauth2.Token{AccessToken: "rejected"}, nil
			}
			return &oauth2.Token{AccessToken: "fresh"}, nil
		}, 0)
		firstDone := make(chan struct{})
		go func() {
			defer close(firstDone)
			_, _ = adapter.accessToken(ctx, "")
		}()
		<-loginStarted

		retried := make(chan string, 1)
		go func() {
			token, err := adapter.accessToken(ctx, "rejected")
			assert.NoError(t, err)
			retried <- token
		}()
		var token string
		select {
		case token = <-retried:
		case <-time.After(time.Second):
		}
		close(releaseLogin)
		<-firstDone
		if token == "" {
			token = <-retried
		}

		assert.Equal(t, "fresh", token)
		assert.Equal(t, int32(2), logins.Load())
	})
}

func TestAdapter_expiryOf(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	adapter := NewWithAPI(nil, realm, nil, 0)
	adapter.now = func() time.Time { return now }

	t.Run("from exp claim", func(t *testing.T) {
		expiry := adapter.expiryOf(signedToken(t, now.Add(time.Hour)))
		assert.Equal(t, now.Add(time.Hour-15*time.Second), expiry)
	})
	t.Run("opaque token", func(t *testing.T) {
		assert.Equal(t, now.Add(time.Minute), adapter.expiryOf("not-a-jwt"))
	})
}

func TestNew(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/realms/beetamin/protocol/openid-connect/token" ||
			r.FormValue("grant_type") != "client_credentials" ||
			r.FormValue("client_id") != "backend" ||
			r.FormValue("client_secret") != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"service-token","token_type":"Bearer","expires_in":300}`))
	}))
	defer server.Close()

	adapter := New(Config{BaseURL: server.URL, Realm: realm, ClientID: "backend", ClientSecret: "secret"}, server.Client())

	token, err := adapter.accessToken(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "service-token", token)
	assert.Equal(t, int32(1), requests.Load())
}
