package userpool

import "context"

// SessionState is one of the five lifecycle states a session moves through.
// The client tracks the current state explicitly; DeriveState reconstructs
// the durable subset from keyring contents so both representations agree.
type SessionState string

const (
	// StateSignedOut means no credentials exist.
	StateSignedOut SessionState = "signed_out"
	// StateAuthenticating means a sign-in call is in flight.
	StateAuthenticating SessionState = "authenticating"
	// StateChallengePending means the pool demanded an extra step and is
	// waiting for a challenge response. No tokens are stored in this state.
	StateChallengePending SessionState = "challenge_pending"
	// StateSignedIn means a usable token set is stored.
	StateSignedIn SessionState = "signed_in"
	// StateRefreshPending means the stored set is expired and a refresh is
	// due (or in flight).
	StateRefreshPending SessionState = "refresh_pending"
)

var sessionTransitions = map[SessionState]map[SessionState]struct{}{
	StateSignedOut: {
		StateAuthenticating: {},
	},
	StateAuthenticating: {
		StateSignedIn:         {},
		StateChallengePending: {},
		StateSignedOut:        {},
	},
	StateChallengePending: {
		StateSignedIn:         {},
		StateChallengePending: {},
		StateSignedOut:        {},
	},
	StateSignedIn: {
		StateRefreshPending: {},
		StateSignedOut:      {},
	},
	StateRefreshPending: {
		StateSignedIn:  {},
		StateSignedOut: {},
	},
}

// CanTransition reports whether the lifecycle allows moving to the target
// state from this one.
func (s SessionState) CanTransition(to SessionState) bool {
	if allowed, ok := sessionTransitions[s]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// DeriveState is the pure function from storage contents to session state.
// Transient in-flight states (authenticating, challenge pending) leave no
// storage trace and therefore derive to signed out — another process
// observing the keyring mid-flight sees no session, which is correct.
func DeriveState(ctx context.Context, store *TokenStore) SessionState {
	set, err := store.Load(ctx)
	if err != nil {
		return StateSignedOut
	}

	if set.IsZero() {
		return StateSignedOut
	}

	if !set.Expired(store.now()) {
		return StateSignedIn
	}

	if set.RefreshToken != "" {
		return StateRefreshPending
	}

	return StateSignedOut
}
