package userpool_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/orangewhip/go-userpool"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  userpool.Config
		wantErr bool
	}{
		{
			name:   "valid config",
			config: userpool.DefaultConfig("us-west-2_ABC123", "client-id"),
		},
		{
			name:    "missing pool id",
			config:  userpool.DefaultConfig("", "client-id"),
			wantErr: true,
		},
		{
			name:    "missing client id",
			config:  userpool.DefaultConfig("us-west-2_ABC123", ""),
			wantErr: true,
		},
		{
			name:    "pool id without region prefix",
			config:  userpool.DefaultConfig("ABC123", "client-id"),
			wantErr: true,
		},
		{
			name:    "pool id without underscore",
			config:  userpool.DefaultConfig("us-west-2", "client-id"),
			wantErr: true,
		},
		{
			name:   "eu region",
			config: userpool.DefaultConfig("eu-central-1_Zz9yX", "client-id"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.NotNil(t, err)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestConfigRegion(t *testing.T) {
	cfg := userpool.DefaultConfig("us-west-2_ABC123", "client-id")
	assert.Equal(t, "us-west-2", cfg.Region())

	cfg = userpool.DefaultConfig("eu-central-1_Zz9yX", "client-id")
	assert.Equal(t, "eu-central-1", cfg.Region())
}

func TestConfigIssuerAndJWKSetURLs(t *testing.T) {
	cfg := userpool.DefaultConfig("us-west-2_ABC123", "client-id")

	assert.Equal(t, "https://cognito-idp.us-west-2.amazonaws.com/us-west-2_ABC123", cfg.IssuerURL())
	assert.Equal(t, cfg.IssuerURL()+"/.well-known/jwks.json", cfg.JWKSetURL())
}

func TestConfigNamespaceIsDeterministic(t *testing.T) {
	a := userpool.DefaultConfig("us-west-2_ABC123", "client-id")
	b := userpool.DefaultConfig("us-west-2_ABC123", "client-id")

	assert.NotEmpty(t, a.Namespace())
	assert.Equal(t, a.Namespace(), b.Namespace(), "same pool and client must map to the same namespace")
}

func TestConfigNamespaceIsolatesAppClients(t *testing.T) {
	a := userpool.DefaultConfig("us-west-2_ABC123", "client-a")
	b := userpool.DefaultConfig("us-west-2_ABC123", "client-b")

	assert.NotEqual(t, a.Namespace(), b.Namespace(), "different app clients must not share a namespace")
}

func TestConfigNamespaceOverride(t *testing.T) {
	cfg := userpool.DefaultConfig("us-west-2_ABC123", "client-id")
	cfg.StorageNamespace = "band-site"

	assert.Equal(t, "band-site", cfg.Namespace())
}

func TestConfigEndpointContainsRegion(t *testing.T) {
	cfg := userpool.DefaultConfig("ap-southeast-2_Pool42", "client-id")

	assert.True(t, strings.Contains(cfg.IssuerURL(), "ap-southeast-2"))
}
