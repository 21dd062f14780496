package userpool

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// IDClaims is the payload shape of the pool's ID and access tokens. Access
// tokens omit the email fields and carry the username under "username".
type IDClaims struct {
	jwt.RegisteredClaims
	Username      string    `json:"cognito:username,omitempty"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"email_verified,omitempty"`
	Groups        GroupList `json:"cognito:groups,omitempty"`
	TokenUse      string    `json:"token_use,omitempty"`
	ClientID      string    `json:"client_id,omitempty"`
}

// UserClaims derives the read-only user view from the claims.
func (c *IDClaims) UserClaims() *UserClaims {
	if c == nil {
		return nil
	}
	return &UserClaims{
		Sub:           c.Subject,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		Groups:        []string(c.Groups),
	}
}

// DecodeToken performs an unverified, best-effort read of a JWT payload.
// It never checks the signature and must not be used as a security
// decision: the pool is the sole authority on token validity. Any failure
// (malformed token, bad encoding, invalid JSON) yields nil, not an error.
func DecodeToken(tokenString string) *IDClaims {
	if tokenString == "" {
		return nil
	}

	claims := &IDClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil
	}
	return claims
}

// GroupList tolerates every shape the group claim arrives in once tokens
// pass through gateways: a real JSON array, a JSON-encoded string, a
// stringified list ("[admin, band]"), or a space separated string.
type GroupList []string

// UnmarshalJSON implements json.Unmarshaler.
func (g *GroupList) UnmarshalJSON(data []byte) error {
	var asList []string
	if err := json.Unmarshal(data, &asList); err == nil {
		*g = asList
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		// Unknown shape; treat as no groups rather than failing the
		// whole payload decode.
		*g = nil
		return nil
	}

	*g = parseGroupString(asString)
	return nil
}

func parseGroupString(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var nested []string
	if err := json.Unmarshal([]byte(raw), &nested); err == nil {
		return nested
	}

	cleaned := strings.Trim(raw, "[]")
	cleaned = strings.ReplaceAll(cleaned, ",", " ")

	var groups []string
	for _, part := range strings.Fields(cleaned) {
		part = strings.Trim(part, `"'`)
		if part != "" {
			groups = append(groups, part)
		}
	}
	return groups
}
