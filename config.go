package userpool

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

var poolIDPattern = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d+_[A-Za-z0-9]+$`)

// Config holds everything the client needs to talk to one user pool app
// client. It replaces the ambient globals the site bootstrap used to set.
type Config struct {
	// UserPoolID identifies the pool, e.g. "us-west-2_ABC123". The region is
	// the substring before the first underscore.
	UserPoolID string

	// ClientID is the app client identifier.
	ClientID string

	// ClientSecret is the optional app client secret. When set, requests
	// carry a SECRET_HASH computed from it.
	ClientSecret string

	// Endpoint overrides the derived provider endpoint (tests, private
	// deployments). Default: "https://cognito-idp.<region>.amazonaws.com/".
	Endpoint string

	// HTTPClient issues the provider calls. Default: 10s timeout client.
	// Inject a client without a timeout to let hung requests hang.
	HTTPClient *http.Client

	// StorageNamespace prefixes every keyring slot. Default: a deterministic
	// UUID derived from (UserPoolID, ClientID), so two app clients sharing a
	// keyring backend never read each other's tokens.
	StorageNamespace string

	// DefaultPhoneRegion seeds phone number parsing for sign-up attributes
	// supplied without a country prefix. Default: "US".
	DefaultPhoneRegion string

	// JWKSCacheTTL is how long the verifying validator caches the pool's
	// key set. Default: 1 hour.
	JWKSCacheTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(userPoolID, clientID string) Config {
	return Config{
		UserPoolID:         userPoolID,
		ClientID:           clientID,
		DefaultPhoneRegion: "US",
		JWKSCacheTTL:       time.Hour,
	}
}

// Validate will run validation rules
func (c Config) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&c,
			validation.Field(
				&c.UserPoolID,
				validation.Required,
				validation.Match(poolIDPattern),
			),
			validation.Field(
				&c.ClientID,
				validation.Required,
				validation.Length(1, 128),
			),
		)
	}, "Invalid user pool configuration")
}

// Region returns the substring of the pool id before the first underscore.
func (c Config) Region() string {
	if i := strings.Index(c.UserPoolID, "_"); i > 0 {
		return c.UserPoolID[:i]
	}
	return ""
}

func (c Config) endpointURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", c.Region())
}

// IssuerURL returns the iss value the pool stamps into its tokens.
func (c Config) IssuerURL() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region(), c.UserPoolID)
}

// JWKSetURL returns the pool's published key set location.
func (c Config) JWKSetURL() string {
	return c.IssuerURL() + "/.well-known/jwks.json"
}

// Namespace returns the storage namespace, deriving a stable one from the
// pool and client ids when none was configured.
func (c Config) Namespace() string {
	if c.StorageNamespace != "" {
		return c.StorageNamespace
	}
	if id, err := hashid.NewUUID(c.UserPoolID + ":" + c.ClientID); err == nil {
		return id.String()
	}
	// Unreachable in practice; keep a readable fallback rather than panic.
	return c.UserPoolID + "." + c.ClientID
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// secretHash computes base64(HMAC-SHA256(secret, username+clientID)), the
// proof the pool demands from app clients configured with a secret. Empty
// when no secret is configured.
func (c Config) secretHash(username string) string {
	if c.ClientSecret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(c.ClientSecret))
	mac.Write([]byte(username + c.ClientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
