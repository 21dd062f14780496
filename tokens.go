package userpool

import "time"

// ExpiryMargin is subtracted from the stored expiry when deciding whether a
// token is still usable, absorbing request latency and clock skew. A token
// whose expiry is exactly at the margin counts as expired.
const ExpiryMargin = 60 * time.Second

// TokenSet is one complete credential set minted by the pool. ExpiresAt is
// absolute; it is derived from the issue time plus the provider's ExpiresIn.
type TokenSet struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// IsZero reports whether the set carries no credentials at all.
func (ts TokenSet) IsZero() bool {
	return ts.AccessToken == "" && ts.IDToken == "" && ts.RefreshToken == ""
}

// Expired reports whether the set needs a refresh at the given instant. A
// set with no recorded expiry is treated as expired.
func (ts TokenSet) Expired(now time.Time) bool {
	if ts.ExpiresAt.IsZero() {
		return true
	}
	return !ts.ExpiresAt.After(now.Add(ExpiryMargin))
}

func (r *authenticationResult) tokenSet(issuedAt time.Time) TokenSet {
	return TokenSet{
		AccessToken:  r.AccessToken,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    issuedAt.Add(time.Duration(r.ExpiresIn) * time.Second),
	}
}

// ChallengeState is returned instead of a TokenSet when the pool demands an
// extra step mid-authentication. It is never persisted; callers feed it back
// into RespondToChallenge.
type ChallengeState struct {
	Name       string
	Session    string
	Parameters map[string]string
}

// AuthOutcome is the single success result of an authentication operation:
// exactly one of Tokens or Challenge is set.
type AuthOutcome struct {
	Tokens    *TokenSet
	Challenge *ChallengeState
}

// SignedIn reports whether the outcome completed authentication.
func (o *AuthOutcome) SignedIn() bool {
	return o != nil && o.Tokens != nil
}

// SignUpResult reports the outcome of account creation. The subject id is
// also written to the keyring's user_sub slot.
type SignUpResult struct {
	UserSub      string
	Confirmed    bool
	CodeDelivery *CodeDelivery
}

// CodeDelivery describes where the pool sent a confirmation code.
type CodeDelivery struct {
	Destination   string
	Medium        string
	AttributeName string
}

func (d *codeDeliveryDetails) export() *CodeDelivery {
	if d == nil {
		return nil
	}
	return &CodeDelivery{
		Destination:   d.Destination,
		Medium:        d.DeliveryMedium,
		AttributeName: d.AttributeName,
	}
}

// UserClaims is the read-only view of the signed-in user derived on demand
// from the stored ID token. It is never persisted independently.
type UserClaims struct {
	Sub           string
	Email         string
	EmailVerified bool
	Groups        []string
}
