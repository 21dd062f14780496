package userpool

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Keyring is the low level five-slot storage the token store writes through.
// Implementations are origin-scoped in spirit: everything sharing a backend
// sees the same slots, last writer wins. No cross-process locking is applied.
type Keyring interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// TokenVerifier validates a token cryptographically and returns its claims.
// This is the trusting counterpart to the unverified DecodeToken reader.
type TokenVerifier interface {
	Verify(tokenString string) (*IDClaims, error)
}

// TokenVerifierFunc adapts a function into a TokenVerifier.
type TokenVerifierFunc func(tokenString string) (*IDClaims, error)

// Verify satisfies the TokenVerifier interface.
func (f TokenVerifierFunc) Verify(tokenString string) (*IDClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}

// Clock lets tests pin the notion of "now" used for expiry checks.
type Clock func() time.Time

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] USERPOOL "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] USERPOOL "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] USERPOOL "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] USERPOOL "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
