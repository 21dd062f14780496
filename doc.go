// Package userpool is a client SDK for a hosted Cognito-style user pool. It
// drives the sign-in / sign-up / challenge / refresh lifecycle against the
// pool's JSON-over-HTTPS API and keeps the resulting tokens in a pluggable
// five-slot keyring.
//
// Session lifecycle:
//   - Client owns the session state machine (signed out, authenticating,
//     challenge pending, signed in, refresh pending). The tracked state is
//     always derivable from keyring contents via DeriveState, so concurrent
//     processes sharing a keyring reconstruct the same view.
//   - Token accessors are read-through: an expired access or ID token
//     triggers a refresh-token call on demand, never on a timer. A failed
//     refresh clears the keyring and signs the session out.
//
// Claims:
//   - DecodeToken is an unverified, best-effort read of a JWT payload used to
//     surface user attributes and group memberships locally. It never checks
//     signatures. TokenVerifier is the verifying counterpart, backed by the
//     pool's published JWKS, for services that must trust the token.
//
// Activity sinks:
//   - ActivitySink receives sign-in, refresh, and sign-out events
//     best-effort (errors are logged) so callers can forward audit trails
//     without blocking authentication.
package userpool
