//go:generate mockgen -destination=./mock/admin_mock.go -package=mock -source=api.go
package keycloak

import (
	"context"

	"github.com/Nerzal/gocloak/v13"
)

// AdminAPI is the subset of the Keycloak admin REST API used by the Adapter.
type AdminAPI interface {
	GetGroups(ctx context.Context, accessToken string, realm string, params gocloak.GetGroupsParams) ([]*gocloak.Group, error)
	AddUserToGroup(ctx context.Context, accessToken string, realm string, userID string, groupID string) error
	DeleteUserFromGroup(ctx context.Context, accessToken string, realm string, userID string, groupID string) error
	GetUserByID(ctx context.Context, accessToken string, realm string, userID string) (*gocloak.User, error)
	UpdateUser(ctx context.Context, accessToken string, realm string, user gocloak.User) error
}

var _ AdminAPI = (*gocloak.GoCloak)(nil)
