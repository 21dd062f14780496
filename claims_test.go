package userpool_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/orangewhip/go-userpool"
)

// unsignedToken builds a structurally valid JWT with a junk signature. Good
// enough for the unverified reader, which never checks it.
func unsignedToken(t *testing.T, claims map[string]any) string {
	t.Helper()

	header, err := json.Marshal(map[string]any{"alg": "RS256", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "." + enc.EncodeToString([]byte("sig"))
}

func TestDecodeToken(t *testing.T) {
	token := unsignedToken(t, map[string]any{
		"sub":              "sub-123",
		"email":            "drummer@orangewhip.surf",
		"email_verified":   true,
		"cognito:groups":   []string{"band", "editor"},
		"cognito:username": "drummer",
		"token_use":        "id",
	})

	claims := userpool.DecodeToken(token)
	require.NotNil(t, claims)

	assert.Equal(t, "sub-123", claims.Subject)
	assert.Equal(t, "drummer@orangewhip.surf", claims.Email)
	assert.True(t, claims.EmailVerified)
	assert.Equal(t, userpool.GroupList{"band", "editor"}, claims.Groups)
	assert.Equal(t, "drummer", claims.Username)
	assert.Equal(t, "id", claims.TokenUse)
}

func TestDecodeTokenNeverErrors(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not a jwt", "hello"},
		{"two segments", "aGVsbG8.d29ybGQ"},
		{"payload not json", "eyJhbGciOiJSUzI1NiJ9.bm90LWpzb24.c2ln"},
		{"payload not base64", "eyJhbGciOiJSUzI1NiJ9.!!!.c2ln"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, userpool.DecodeToken(tt.token))
		})
	}
}

func TestDecodeTokenUserClaims(t *testing.T) {
	token := unsignedToken(t, map[string]any{
		"sub":            "sub-123",
		"email":          "drummer@orangewhip.surf",
		"cognito:groups": []string{"admin"},
	})

	info := userpool.DecodeToken(token).UserClaims()
	require.NotNil(t, info)

	assert.Equal(t, "sub-123", info.Sub)
	assert.Equal(t, []string{"admin"}, info.Groups)
}

func TestGroupListShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want userpool.GroupList
	}{
		{"json array", `["admin","band"]`, userpool.GroupList{"admin", "band"}},
		{"json encoded string", `"[\"admin\", \"band\"]"`, userpool.GroupList{"admin", "band"}},
		{"stringified list", `"[admin, band]"`, userpool.GroupList{"admin", "band"}},
		{"space separated", `"admin band"`, userpool.GroupList{"admin", "band"}},
		{"single group string", `"admin"`, userpool.GroupList{"admin"}},
		{"empty string", `""`, nil},
		{"empty array", `[]`, userpool.GroupList{}},
		{"unknown shape", `42`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got userpool.GroupList
			err := json.Unmarshal([]byte(tt.raw), &got)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
