package keycloak

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	valid := Config{BaseURL: "https://id.example.com/", Realm: "beetamin", ClientID: "backend", ClientSecret: "secret"}
	assert.NoError(t, valid.Validate())
	assert.Equal(t, "https://id.example.com/realms/beetamin/protocol/openid-connect/token", valid.TokenURL())

	t.Run("missing base URL", func(t *testing.T) {
		c := valid
		c.BaseURL = ""
		assert.EqualError(t, c.Validate(), "keycloak.baseurl is not configured")
	})
	t.Run("relative base URL", func(t *testing.T) {
		c := valid
		c.BaseURL = "/keycloak"
		assert.EqualError(t, c.Validate(), "keycloak.baseurl must be an absolute URL")
	})
	t.Run("missing realm", func(t *testing.T) {
		c := valid
		c.Realm = ""
		assert.EqualError(t, c.Validate(), "keycloak.realm is not configured")
	})
	t.Run("missing client secret", func(t *testing.T) {
		c := valid
		c.ClientSecret = ""
		assert.Error(t, c.Validate())
	})
}
