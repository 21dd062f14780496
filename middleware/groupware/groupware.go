// Package groupware provides go-router middleware that gates requests on a
// verified pool token and the caller's group derived role.
package groupware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-router"
	"github.com/orangewhip/go-userpool"
)

var (
	defaultTokenLookup       = "header:" + router.HeaderAuthorization
	ErrTokenMissingOrMangled = errors.New("missing or malformed bearer token")
)

// ClaimsListener is invoked after a token verifies but before any group or
// role checks run.
type ClaimsListener func(ctx router.Context, claims *userpool.IDClaims) error

type Config struct {
	// Filter defines a function to skip the middleware when it returns true.
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler

	// Verifier is required; use userpool.NewTokenVerifier against the pool's
	// JWK set, or a TokenVerifierFunc in tests.
	Verifier userpool.TokenVerifier

	// ContextKey is the Locals key the verified claims are stored under.
	// Defaults to "user".
	ContextKey string

	// TokenLookup is a comma separated list of "source:name" entries, e.g.
	// "header:Authorization,cookie:id_token,query:token,param:token".
	TokenLookup string
	// AuthScheme is the expected prefix for header lookups. Defaults to
	// "Bearer".
	AuthScheme string

	// RequiredGroup demands literal membership in this group.
	RequiredGroup string
	// MinimumRole demands at least this role per the site hierarchy.
	MinimumRole userpool.Role

	// ClaimsListeners run after verification for bookkeeping or auditing.
	ClaimsListeners []ClaimsListener

	// ContextEnricher propagates claims into the standard Go context after a
	// successful verification. userpool.WithClaimsContext is the usual choice.
	ContextEnricher func(c context.Context, claims *userpool.IDClaims) context.Context
}

// New builds the middleware. The zero Config panics: a Verifier is required.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawToken(ctx, cfg.getExtractors())
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			claims, err := cfg.Verifier.Verify(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := cfg.runClaimsListeners(ctx, claims); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := checkAccess(claims, cfg); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, claims)

			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), claims))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// checkAccess applies the group and role gates against the verified claims.
func checkAccess(claims *userpool.IDClaims, cfg Config) error {
	if cfg.RequiredGroup == "" && cfg.MinimumRole == "" {
		return nil
	}

	groups := []string(claims.Groups)

	if cfg.RequiredGroup != "" {
		found := false
		for _, group := range groups {
			if group == cfg.RequiredGroup {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("access denied: required group '%s' not found", cfg.RequiredGroup)
		}
	}

	if cfg.MinimumRole != "" {
		if !userpool.RoleFromGroups(groups).IsAtLeast(cfg.MinimumRole) {
			return fmt.Errorf("access denied: minimum role '%s' required", cfg.MinimumRole)
		}
	}

	return nil
}

func ExtractRawToken(ctx router.Context, extractors []TokenExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			if err.Error() == ErrTokenMissingOrMangled.Error() {
				return c.Status(router.StatusBadRequest).SendString(ErrTokenMissingOrMangled.Error())
			}
			if strings.HasPrefix(err.Error(), "access denied") {
				return c.Status(router.StatusForbidden).SendString(err.Error())
			}
			return c.Status(router.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.Verifier == nil {
		panic("groupware middleware configuration: Verifier is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []TokenExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runClaimsListeners(ctx router.Context, claims *userpool.IDClaims) error {
	for _, listener := range cfg.ClaimsListeners {
		if listener == nil {
			continue
		}
		if err := listener(ctx, claims); err != nil {
			return err
		}
	}
	return nil
}

func GetExtractors(tokenLookup string, authSchemes ...string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	// header:Authorization,cookie:id_token,query:token,param:token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, tokenFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, tokenFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(parts[1]))
		}
	}

	return extractors
}

type TokenExtractor func(c router.Context) (string, error)

// tokenFromHeader returns a function that extracts the token from the request header.
func tokenFromHeader(header string, authScheme string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		l := len(authScheme)
		if l == 0 {
			return "", ErrTokenMissingOrMangled
		}
		authScheme = strings.TrimSpace(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrTokenMissingOrMangled
	}
}

// tokenFromQuery returns a function that extracts the token from the query string.
func tokenFromQuery(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrTokenMissingOrMangled
		}
		return token, nil
	}
}

// tokenFromParam returns a function that extracts the token from the url param string.
func tokenFromParam(param string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrTokenMissingOrMangled
		}
		return token, nil
	}
}

// tokenFromCookie returns a function that extracts the token from the named cookie.
func tokenFromCookie(name string) func(c router.Context) (string, error) {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissingOrMangled
		}
		return token, nil
	}
}
