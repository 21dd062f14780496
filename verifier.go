package userpool

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// Token use values carried in the "token_use" claim.
const (
	TokenUseID     = "id"
	TokenUseAccess = "access"
)

// JWKSTokenVerifier verifies pool-issued tokens against the pool's JWKS
// endpoint. This is the verifying sibling of DecodeToken: use it on the
// server side of the house (middleware, APIs); use DecodeToken only for
// cosmetic client-side reads.
type JWKSTokenVerifier struct {
	config   Config
	jwks     *keyfunc.JWKS
	tokenUse string
}

// NewTokenVerifier fetches the pool's JWKS and returns a verifier for ID
// tokens. The key set refreshes in the background for the life of the
// process.
func NewTokenVerifier(cfg Config) (*JWKSTokenVerifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ttl := cfg.JWKSCacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	jwks, err := keyfunc.Get(cfg.JWKSetURL(), keyfunc.Options{
		RefreshInterval:   ttl,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to fetch JWK set").
			WithMetadata(map[string]any{"jwks_url": cfg.JWKSetURL()})
	}

	return &JWKSTokenVerifier{config: cfg, jwks: jwks, tokenUse: TokenUseID}, nil
}

// NewStaticTokenVerifier builds a verifier over a fixed key set, skipping
// the JWKS fetch. Meant for tests and air-gapped validation.
func NewStaticTokenVerifier(cfg Config, keys map[string]keyfunc.GivenKey) *JWKSTokenVerifier {
	return &JWKSTokenVerifier{
		config:   cfg,
		jwks:     keyfunc.NewGiven(keys),
		tokenUse: TokenUseID,
	}
}

// ForTokenUse returns a verifier expecting the given "token_use" claim
// value, e.g. TokenUseAccess for access tokens.
func (v *JWKSTokenVerifier) ForTokenUse(use string) *JWKSTokenVerifier {
	clone := *v
	clone.tokenUse = use
	return &clone
}

// Verify checks the token's signature against the pool keys along with the
// standard time claims, the issuer, the audience (or client_id for access
// tokens) and the token_use claim. On success it returns the parsed claims.
func (v *JWKSTokenVerifier) Verify(tokenString string) (*IDClaims, error) {
	claims := &IDClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc,
		jwt.WithIssuer(v.config.IssuerURL()),
		jwt.WithValidMethods([]string{"RS256"}),
	)
	if err != nil {
		return nil, normalizeVerifyError(err)
	}
	if !token.Valid {
		return nil, ErrTokenMalformed.Clone()
	}

	if v.tokenUse != "" && claims.TokenUse != v.tokenUse {
		return nil, ErrWrongTokenUse.Clone().WithMetadata(map[string]any{
			"want_token_use": v.tokenUse,
			"got_token_use":  claims.TokenUse,
		})
	}

	// ID tokens carry the app client in aud; access tokens in client_id.
	if !v.audienceMatches(claims) {
		return nil, errors.New("token was not issued for this app client", errors.CategoryAuth).
			WithTextCode(TextCodeWrongTokenUse).
			WithCode(errors.CodeUnauthorized)
	}

	return claims, nil
}

func (v *JWKSTokenVerifier) audienceMatches(claims *IDClaims) bool {
	if claims.ClientID != "" {
		return claims.ClientID == v.config.ClientID
	}
	for _, aud := range claims.Audience {
		if aud == v.config.ClientID {
			return true
		}
	}
	return false
}

func normalizeVerifyError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		clone := ErrTokenExpired.Clone()
		clone.Source = err
		return clone
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return errors.Wrap(err, errors.CategoryAuth, "token not valid yet").
			WithTextCode(TextCodeTokenMalformed).
			WithCode(errors.CodeUnauthorized)
	default:
		clone := ErrTokenMalformed.Clone()
		clone.Source = err
		return clone
	}
}
