package userpool_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/orangewhip/go-userpool"
)

type verifierFixture struct {
	config   userpool.Config
	verifier *userpool.JWKSTokenVerifier
	key      *rsa.PrivateKey
	kid      string
}

func newVerifierFixture(t *testing.T) *verifierFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cfg := userpool.DefaultConfig("us-west-2_ABC123", "client-id")
	kid := "test-kid"

	verifier := userpool.NewStaticTokenVerifier(cfg, map[string]keyfunc.GivenKey{
		kid: keyfunc.NewGivenCustom(&key.PublicKey, keyfunc.GivenKeyOptions{Algorithm: "RS256"}),
	})

	return &verifierFixture{config: cfg, verifier: verifier, key: key, kid: kid}
}

func (f *verifierFixture) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = f.kid

	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func (f *verifierFixture) baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            f.config.IssuerURL(),
		"aud":            f.config.ClientID,
		"sub":            "sub-123",
		"token_use":      "id",
		"email":          "drummer@orangewhip.surf",
		"cognito:groups": []string{"band"},
		"exp":            time.Now().Add(time.Hour).Unix(),
		"iat":            time.Now().Unix(),
	}
}

func TestVerifierAcceptsValidToken(t *testing.T) {
	f := newVerifierFixture(t)

	claims, err := f.verifier.Verify(f.sign(t, f.baseClaims()))
	require.NoError(t, err)

	assert.Equal(t, "sub-123", claims.Subject)
	assert.Equal(t, "drummer@orangewhip.surf", claims.Email)
	assert.Equal(t, userpool.GroupList{"band"}, claims.Groups)
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	f := newVerifierFixture(t)

	claims := f.baseClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()

	_, err := f.verifier.Verify(f.sign(t, claims))
	require.Error(t, err)
	assert.True(t, userpool.IsTokenExpiredError(err))
}

func TestVerifierRejectsWrongIssuer(t *testing.T) {
	f := newVerifierFixture(t)

	claims := f.baseClaims()
	claims["iss"] = "https://cognito-idp.us-west-2.amazonaws.com/us-west-2_OTHER"

	_, err := f.verifier.Verify(f.sign(t, claims))
	require.Error(t, err)
	assert.False(t, userpool.IsTokenExpiredError(err))
}

func TestVerifierRejectsWrongAudience(t *testing.T) {
	f := newVerifierFixture(t)

	claims := f.baseClaims()
	claims["aud"] = "someone-elses-client"

	_, err := f.verifier.Verify(f.sign(t, claims))
	require.Error(t, err)
}

func TestVerifierRejectsTamperedToken(t *testing.T) {
	f := newVerifierFixture(t)

	signed := f.sign(t, f.baseClaims())
	tampered := signed[:len(signed)-4] + "AAAA"

	_, err := f.verifier.Verify(tampered)
	require.Error(t, err)
}

func TestVerifierRejectsUnsignedToken(t *testing.T) {
	f := newVerifierFixture(t)

	_, err := f.verifier.Verify(unsignedToken(t, map[string]any{
		"iss":       f.config.IssuerURL(),
		"aud":       f.config.ClientID,
		"token_use": "id",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}))
	require.Error(t, err)
}

func TestVerifierTokenUse(t *testing.T) {
	f := newVerifierFixture(t)

	claims := f.baseClaims()
	claims["token_use"] = "access"
	delete(claims, "aud")
	claims["client_id"] = f.config.ClientID
	signed := f.sign(t, claims)

	// The default verifier expects an ID token.
	_, err := f.verifier.Verify(signed)
	require.Error(t, err)

	// The access-token variant accepts it.
	verified, err := f.verifier.ForTokenUse(userpool.TokenUseAccess).Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "access", verified.TokenUse)
}
