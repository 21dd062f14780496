package userpool

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeTransportFailure  = "pool_transport_failure"
	TextCodeProviderRejected  = "pool_provider_rejected"
	TextCodeNoRefreshToken    = "pool_no_refresh_token"
	TextCodeNotSignedIn       = "pool_not_signed_in"
	TextCodeMissingAuthResult = "pool_missing_auth_result"
	TextCodeInvalidTransition = "pool_invalid_session_transition"
	TextCodeTokenExpired      = "pool_token_expired"
	TextCodeTokenMalformed    = "pool_token_malformed"
	TextCodeWrongTokenUse     = "pool_wrong_token_use"
	TextCodeKeyringSealed     = "pool_keyring_sealed"
)

// ErrTransportFailure wraps network or decode failures reaching the pool.
var ErrTransportFailure = errors.New("unable to reach the user pool", errors.CategoryOperation).
	WithTextCode(TextCodeTransportFailure).
	WithCode(errors.CodeInternal)

// ErrNoRefreshToken is returned when a refresh is required but no refresh
// token is stored.
var ErrNoRefreshToken = errors.New("no refresh token available", errors.CategoryConflict).
	WithTextCode(TextCodeNoRefreshToken).
	WithCode(errors.CodeConflict)

// ErrNotSignedIn is returned by token accessors when no session exists.
var ErrNotSignedIn = errors.New("no active session", errors.CategoryAuth).
	WithTextCode(TextCodeNotSignedIn).
	WithCode(errors.CodeUnauthorized)

// ErrMissingAuthResult is returned when the pool reports success but the
// response carries neither an authentication result nor a challenge.
var ErrMissingAuthResult = errors.New("authentication result missing from response", errors.CategoryOperation).
	WithTextCode(TextCodeMissingAuthResult).
	WithCode(errors.CodeInternal)

// ErrInvalidTransition is returned when a requested session state change is
// not in the lifecycle transition table.
var ErrInvalidTransition = errors.New("invalid session state transition", errors.CategoryConflict).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(errors.CodeConflict)

// ErrTokenExpired is returned by the verifying validator for expired tokens.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned by the verifying validator when a token
// cannot be parsed or its signature does not check out.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrWrongTokenUse is returned when a token verifies but its token_use claim
// does not match what the caller asked for (access vs id).
var ErrWrongTokenUse = errors.New("unexpected token use", errors.CategoryAuth).
	WithTextCode(TextCodeWrongTokenUse).
	WithCode(errors.CodeForbidden)

// ErrKeyringSealed is returned by the file keyring when the payload cannot be
// opened with the supplied passphrase.
var ErrKeyringSealed = errors.New("keyring cannot be opened with this passphrase", errors.CategoryAuth).
	WithTextCode(TextCodeKeyringSealed).
	WithCode(errors.CodeForbidden)

// Provider error codes the band site's pages branch on. The pool may return
// codes outside this list; they are carried through untouched.
const (
	CodeNotAuthorized    = "NotAuthorizedException"
	CodeUserNotConfirmed = "UserNotConfirmedException"
	CodeUserNotFound     = "UserNotFoundException"
	CodeUsernameExists   = "UsernameExistsException"
	CodeCodeMismatch     = "CodeMismatchException"
	CodeExpiredCode      = "ExpiredCodeException"
	CodeInvalidPassword  = "InvalidPasswordException"
	CodeTooManyRequests  = "TooManyRequestsException"
)

// providerError builds the rejection error for a non-success pool response,
// preserving the machine readable provider code verbatim.
func providerError(code, message string, status int) *errors.Error {
	if message == "" {
		message = "user pool rejected the request"
	}

	category := errors.CategoryAuth
	errCode := errors.CodeUnauthorized
	switch code {
	case CodeUsernameExists:
		category = errors.CategoryConflict
		errCode = errors.CodeConflict
	case CodeInvalidPassword, CodeCodeMismatch, CodeExpiredCode:
		category = errors.CategoryValidation
		errCode = errors.CodeBadRequest
	case CodeUserNotFound:
		category = errors.CategoryNotFound
		errCode = errors.CodeNotFound
	case CodeTooManyRequests:
		category = errors.CategoryRateLimit
	}

	return errors.New(message, category).
		WithTextCode(TextCodeProviderRejected).
		WithCode(errCode).
		WithMetadata(map[string]any{
			"provider_code": code,
			"http_status":   status,
		})
}

// transportError wraps a failure that never produced a provider response.
func transportError(cause error, msg string) *errors.Error {
	return errors.Wrap(cause, ErrTransportFailure.Category, msg).
		WithTextCode(TextCodeTransportFailure).
		WithCode(errors.CodeInternal)
}

// ProviderCode extracts the provider's machine readable error code, or ""
// when err did not originate from a pool rejection.
func ProviderCode(err error) string {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return ""
	}
	if richErr.TextCode != TextCodeProviderRejected {
		return ""
	}
	if code, ok := richErr.Metadata["provider_code"].(string); ok {
		return code
	}
	return ""
}

// IsProviderCode reports whether err is a pool rejection with the given code.
func IsProviderCode(err error, code string) bool {
	return ProviderCode(err) == code
}

// IsTransportError reports whether err is a network/decode level failure.
func IsTransportError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeTransportFailure
}

// IsKeyringSealedError reports whether err means a keyring payload could not
// be opened with the supplied passphrase.
func IsKeyringSealedError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeKeyringSealed
}

// IsNotSignedInError reports whether err means no session exists.
func IsNotSignedInError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeNotSignedIn
}

// IsNoRefreshTokenError reports whether err means a refresh was required but
// no refresh token was stored.
func IsNoRefreshTokenError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeNoRefreshToken
}

// IsTokenExpiredError will check for expired tokens from the verifier.
func IsTokenExpiredError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeTokenExpired
}
