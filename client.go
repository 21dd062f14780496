package userpool

import (
	"context"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// Auth parameter names used by the password and refresh flows.
const (
	paramUsername     = "USERNAME"
	paramPassword     = "PASSWORD"
	paramRefreshToken = "REFRESH_TOKEN"
	paramSecretHash   = "SECRET_HASH"
)

// Client drives one user's session against a pool app client. All blocking
// operations take a context and return exactly one error-or-result outcome;
// nothing is surfaced through panics or shared error state.
//
// Token reads are read-through with lazy refresh: only an actual access to
// an expired token triggers a refresh call, never a timer. Within one
// process concurrent refreshes serialize on an internal mutex; across
// processes sharing a keyring, last writer wins.
type Client struct {
	config    Config
	transport *Transport
	store     *TokenStore
	logger    Logger
	sink      ActivitySink
	now       Clock

	mu    sync.Mutex
	state SessionState
}

// New validates cfg and returns a client backed by an in-memory keyring.
// Use WithKeyring or WithTokenStore to persist sessions.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := defLogger{}
	return &Client{
		config:    cfg,
		transport: newTransport(cfg, logger),
		store:     NewTokenStore(NewMemoryKeyring(), cfg.Namespace()),
		logger:    logger,
		sink:      noopActivitySink{},
		now:       time.Now,
		state:     StateSignedOut,
	}, nil
}

// WithLogger overrides the default stdout logger.
func (c *Client) WithLogger(logger Logger) *Client {
	if logger != nil {
		c.logger = logger
		c.transport.logger = logger
	}
	return c
}

// WithActivitySink configures an ActivitySink for emitting session events.
func (c *Client) WithActivitySink(sink ActivitySink) *Client {
	c.sink = normalizeActivitySink(sink)
	return c
}

// WithKeyring rebinds the token store onto the given keyring, keeping the
// configured namespace.
func (c *Client) WithKeyring(ring Keyring) *Client {
	if ring != nil {
		c.store = NewTokenStore(ring, c.config.Namespace()).WithClock(c.now)
	}
	return c
}

// WithTokenStore replaces the token store wholesale.
func (c *Client) WithTokenStore(store *TokenStore) *Client {
	if store != nil {
		c.store = store
	}
	return c
}

// WithClock injects a custom clock (useful for tests).
func (c *Client) WithClock(clock Clock) *Client {
	if clock != nil {
		c.now = clock
		c.store.WithClock(clock)
	}
	return c
}

// Store exposes the token store for collaborators that render from it.
func (c *Client) Store() *TokenStore {
	return c.store
}

// SignIn authenticates with the password flow. On plain success the returned
// outcome carries the token set and the keyring holds it; when the pool
// demands an extra step the outcome carries the challenge instead and
// nothing is written to storage.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthOutcome, error) {
	// A fresh sign-in abandons whatever session came before it.
	c.setState(StateSignedOut)
	c.setState(StateAuthenticating)

	params := map[string]string{
		paramUsername: email,
		paramPassword: password,
	}
	if hash := c.config.secretHash(email); hash != "" {
		params[paramSecretHash] = hash
	}

	var out initiateAuthOutput
	err := c.transport.Call(ctx, ActionInitiateAuth, initiateAuthInput{
		AuthFlow:       authFlowUserPassword,
		ClientID:       c.config.ClientID,
		AuthParameters: params,
	}, &out)
	if err != nil {
		c.setState(StateSignedOut)
		c.emit(ctx, ActivityEventSignInFailure, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}

	return c.settleAuthResponse(ctx, email, &out)
}

// RespondToChallenge posts the caller's answers to a pending challenge. The
// pool may answer with tokens (sign-in completes), with another challenge
// (re-invoke with the new state), or with a rejection. Only a response
// carrying an authentication result writes tokens.
func (c *Client) RespondToChallenge(ctx context.Context, challenge ChallengeState, responses map[string]string) (*AuthOutcome, error) {
	merged := make(map[string]string, len(responses)+1)
	for k, v := range responses {
		merged[k] = v
	}
	username := merged[paramUsername]
	if username == "" {
		username = challenge.Parameters[paramUsername]
		if username != "" {
			merged[paramUsername] = username
		}
	}
	if hash := c.config.secretHash(username); hash != "" && username != "" {
		merged[paramSecretHash] = hash
	}

	var out initiateAuthOutput
	err := c.transport.Call(ctx, ActionRespondToAuthChallenge, respondToChallengeInput{
		ClientID:           c.config.ClientID,
		ChallengeName:      challenge.Name,
		Session:            challenge.Session,
		ChallengeResponses: merged,
	}, &out)
	if err != nil {
		// State stays at challenge pending; retrying or abandoning is the
		// caller's call.
		c.emit(ctx, ActivityEventSignInFailure, "", map[string]any{
			"challenge": challenge.Name,
			"error":     err.Error(),
		})
		return nil, err
	}

	return c.settleAuthResponse(ctx, username, &out)
}

func (c *Client) settleAuthResponse(ctx context.Context, email string, out *initiateAuthOutput) (*AuthOutcome, error) {
	if out.ChallengeName != "" && out.AuthenticationResult == nil {
		c.setState(StateChallengePending)
		challenge := &ChallengeState{
			Name:       out.ChallengeName,
			Session:    out.Session,
			Parameters: out.ChallengeParameters,
		}
		c.emit(ctx, ActivityEventSignInChallenge, "", map[string]any{
			"email":     email,
			"challenge": out.ChallengeName,
		})
		return &AuthOutcome{Challenge: challenge}, nil
	}

	if out.AuthenticationResult == nil {
		c.setState(StateSignedOut)
		return nil, ErrMissingAuthResult.Clone()
	}

	set := out.AuthenticationResult.tokenSet(c.now())
	if err := c.store.Save(ctx, set); err != nil {
		c.setState(StateSignedOut)
		return nil, err
	}

	sub := c.rememberUserSub(ctx, set.IDToken)
	c.setState(StateSignedIn)
	c.emit(ctx, ActivityEventSignInSuccess, sub, map[string]any{
		"email": email,
	})
	return &AuthOutcome{Tokens: &set}, nil
}

// SignUpInput carries registration fields. Email doubles as the username.
type SignUpInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	// Attributes holds extra provider attributes verbatim (e.g. a custom
	// "custom:instrument"). Name/Phone shortcuts win on collision.
	Attributes map[string]string
}

// Validate will run validation rules
func (i SignUpInput) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&i,
			validation.Field(&i.Email, validation.Required, validation.Length(6, 100), is.Email),
			validation.Field(&i.Password, validation.Required, validation.Length(8, 256)),
		)
	}, "Invalid sign up payload")
}

// SignUp creates a pool account. It does not authenticate; the returned
// subject id is recorded in the keyring's user_sub slot and the account
// usually still needs ConfirmSignUp.
func (c *Client) SignUp(ctx context.Context, input SignUpInput) (*SignUpResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	attrs := []userAttribute{{Name: "email", Value: input.Email}}
	if input.Name != "" {
		attrs = append(attrs, userAttribute{Name: "name", Value: input.Name})
	}
	if input.Phone != "" {
		phone, err := c.normalizePhone(input.Phone)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, userAttribute{Name: "phone_number", Value: phone})
	}
	for name, value := range input.Attributes {
		if name == "email" || name == "name" || name == "phone_number" {
			continue
		}
		attrs = append(attrs, userAttribute{Name: name, Value: value})
	}

	var out signUpOutput
	err := c.transport.Call(ctx, ActionSignUp, signUpInput{
		ClientID:       c.config.ClientID,
		Username:       input.Email,
		Password:       input.Password,
		SecretHash:     c.config.secretHash(input.Email),
		UserAttributes: attrs,
	}, &out)
	if err != nil {
		return nil, err
	}

	if out.UserSub != "" {
		if err := c.store.SaveUserSub(ctx, out.UserSub); err != nil {
			c.logger.Warn("failed to record user sub: %v", err)
		}
	}

	c.emit(ctx, ActivityEventSignUp, out.UserSub, map[string]any{
		"email":     input.Email,
		"confirmed": out.UserConfirmed,
	})

	return &SignUpResult{
		UserSub:      out.UserSub,
		Confirmed:    out.UserConfirmed,
		CodeDelivery: out.CodeDeliveryDetails.export(),
	}, nil
}

// ConfirmSignUp finalizes registration with the emailed code. Token state
// is untouched.
func (c *Client) ConfirmSignUp(ctx context.Context, email, code string) error {
	err := c.transport.Call(ctx, ActionConfirmSignUp, confirmSignUpInput{
		ClientID:         c.config.ClientID,
		Username:         email,
		ConfirmationCode: code,
		SecretHash:       c.config.secretHash(email),
	}, nil)
	if err != nil {
		return err
	}

	c.emit(ctx, ActivityEventSignUpConfirmed, "", map[string]any{"email": email})
	return nil
}

// ForgotPassword asks the pool to send a reset code.
func (c *Client) ForgotPassword(ctx context.Context, email string) (*CodeDelivery, error) {
	var out forgotPasswordOutput
	err := c.transport.Call(ctx, ActionForgotPassword, forgotPasswordInput{
		ClientID:   c.config.ClientID,
		Username:   email,
		SecretHash: c.config.secretHash(email),
	}, &out)
	if err != nil {
		return nil, err
	}

	c.emit(ctx, ActivityEventPasswordResetRequested, "", map[string]any{"email": email})
	return out.CodeDeliveryDetails.export(), nil
}

// ConfirmForgotPassword sets a new password using the emailed reset code.
func (c *Client) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	err := c.transport.Call(ctx, ActionConfirmForgotPassword, confirmForgotPasswordInput{
		ClientID:         c.config.ClientID,
		Username:         email,
		ConfirmationCode: code,
		Password:         newPassword,
		SecretHash:       c.config.secretHash(email),
	}, nil)
	if err != nil {
		return err
	}

	c.emit(ctx, ActivityEventPasswordResetConfirmed, "", map[string]any{"email": email})
	return nil
}

// SignOut clears local tokens and fires a best-effort global sign-out at
// the pool. The remote result is deliberately swallowed: local sign-out is
// never blocked or reversed by a server-side failure. The only returned
// error is a local storage failure.
func (c *Client) SignOut(ctx context.Context) error {
	accessToken, err := c.store.AccessToken(ctx)
	if err != nil {
		c.logger.Warn("sign out could not read access token: %v", err)
	}

	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.setState(StateSignedOut)
	c.emit(ctx, ActivityEventSignOut, "", nil)

	if accessToken != "" {
		if err := c.transport.Call(ctx, ActionGlobalSignOut, globalSignOutInput{
			AccessToken: accessToken,
		}, nil); err != nil {
			c.logger.Warn("global sign out failed (local session already cleared): %v", err)
			c.emit(ctx, ActivityEventSignOutRemoteFailure, "", map[string]any{
				"error": err.Error(),
			})
		}
	}

	return nil
}

// IsAuthenticated reports whether a usable session exists, refreshing an
// expired one on the way. It is the boolean form of AccessToken.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	token, err := c.AccessToken(ctx)
	return err == nil && token != ""
}

// AccessToken returns a currently valid access token, transparently
// refreshing an expired set first.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	set, err := c.freshTokens(ctx)
	if err != nil {
		return "", err
	}
	return set.AccessToken, nil
}

// IDToken returns a currently valid ID token, transparently refreshing an
// expired set first.
func (c *Client) IDToken(ctx context.Context) (string, error) {
	set, err := c.freshTokens(ctx)
	if err != nil {
		return "", err
	}
	return set.IDToken, nil
}

// Groups returns the group memberships from the stored ID token. It never
// triggers a refresh and returns nil when no session exists or the token
// does not decode.
func (c *Client) Groups(ctx context.Context) []string {
	info := c.UserInfo(ctx)
	if info == nil {
		return nil
	}
	return info.Groups
}

// UserInfo returns the user view derived from the stored ID token, or nil.
// Like Groups it is a pure read: no refresh, no error.
func (c *Client) UserInfo(ctx context.Context) *UserClaims {
	idToken, err := c.store.IDToken(ctx)
	if err != nil || idToken == "" {
		return nil
	}
	claims := DecodeToken(idToken)
	if claims == nil {
		return nil
	}
	return claims.UserClaims()
}

// Role returns the site role implied by the stored session's groups.
func (c *Client) Role(ctx context.Context) Role {
	return RoleFromGroups(c.Groups(ctx))
}

// State returns the tracked session state. Durable states are reconciled
// against storage so the tracked and derived representations always agree
// once an operation has settled.
func (c *Client) State(ctx context.Context) SessionState {
	c.mu.Lock()
	tracked := c.state
	c.mu.Unlock()

	switch tracked {
	case StateAuthenticating, StateChallengePending:
		return tracked
	default:
		derived := DeriveState(ctx, c.store)
		if derived != tracked {
			c.mu.Lock()
			c.state = derived
			c.mu.Unlock()
		}
		return derived
	}
}

// freshTokens loads the stored set, refreshing it when expired. Refresh
// failure (including a missing refresh token) clears every slot so stale
// credentials cannot be replayed.
func (c *Client) freshTokens(ctx context.Context) (TokenSet, error) {
	set, err := c.store.Load(ctx)
	if err != nil {
		return TokenSet{}, err
	}

	if set.IsZero() {
		return TokenSet{}, ErrNotSignedIn.Clone()
	}

	if !set.Expired(c.now()) {
		return set, nil
	}

	return c.refreshTokens(ctx)
}

func (c *Client) refreshTokens(ctx context.Context) (TokenSet, error) {
	// Serialize refreshes within this process; the loser of the race
	// re-reads the keyring and usually finds a fresh set already there.
	c.mu.Lock()
	defer c.mu.Unlock()

	set, err := c.store.Load(ctx)
	if err != nil {
		return TokenSet{}, err
	}
	if !set.IsZero() && !set.Expired(c.now()) {
		return set, nil
	}

	c.state = StateRefreshPending

	if set.RefreshToken == "" {
		c.clearAfterRefreshFailure(ctx, ErrNoRefreshToken)
		return TokenSet{}, ErrNoRefreshToken.Clone()
	}

	params := map[string]string{paramRefreshToken: set.RefreshToken}
	if sub, _ := c.store.UserSub(ctx); sub != "" {
		if hash := c.config.secretHash(sub); hash != "" {
			params[paramSecretHash] = hash
		}
	}

	var out initiateAuthOutput
	err = c.transport.Call(ctx, ActionInitiateAuth, initiateAuthInput{
		AuthFlow:       authFlowRefreshToken,
		ClientID:       c.config.ClientID,
		AuthParameters: params,
	}, &out)
	if err != nil {
		c.clearAfterRefreshFailure(ctx, err)
		return TokenSet{}, err
	}

	if out.AuthenticationResult == nil {
		err := ErrMissingAuthResult.Clone()
		c.clearAfterRefreshFailure(ctx, err)
		return TokenSet{}, err
	}

	fresh := out.AuthenticationResult.tokenSet(c.now())
	if err := c.store.Save(ctx, fresh); err != nil {
		return TokenSet{}, err
	}
	// A refresh response that omits the refresh token keeps the old one
	// standing; reload so callers see the merged set.
	fresh, err = c.store.Load(ctx)
	if err != nil {
		return TokenSet{}, err
	}

	c.state = StateSignedIn
	c.emitWithState(ctx, ActivityEventRefreshSuccess, "", StateSignedIn, nil)
	return fresh, nil
}

// clearAfterRefreshFailure runs inside the refresh critical section; c.mu is
// already held.
func (c *Client) clearAfterRefreshFailure(ctx context.Context, cause error) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("failed to clear tokens after refresh failure: %v", err)
	}
	c.state = StateSignedOut
	c.emitWithState(ctx, ActivityEventRefreshFailure, "", StateSignedOut, map[string]any{
		"error": cause.Error(),
	})
}

func (c *Client) rememberUserSub(ctx context.Context, idToken string) string {
	claims := DecodeToken(idToken)
	if claims == nil || claims.Subject == "" {
		return ""
	}
	if err := c.store.SaveUserSub(ctx, claims.Subject); err != nil {
		c.logger.Warn("failed to record user sub: %v", err)
	}
	return claims.Subject
}

func (c *Client) normalizePhone(raw string) (string, error) {
	region := c.config.DefaultPhoneRegion
	if strings.HasPrefix(strings.TrimSpace(raw), "+") {
		region = ""
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryValidation, "invalid phone number").
			WithCode(errors.CodeBadRequest)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func (c *Client) setState(to SessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == to {
		return
	}
	if !c.state.CanTransition(to) {
		// Transition table violations indicate a bug in this package, not
		// in the caller; log loudly and move anyway so storage stays the
		// source of truth.
		c.logger.Error("illegal session transition %s -> %s", c.state, to)
	}
	c.state = to
}

// emit records an activity event. Must not be called with c.mu held; use
// emitWithState from inside the refresh critical section.
func (c *Client) emit(ctx context.Context, eventType ActivityEventType, userSub string, metadata map[string]any) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	c.emitWithState(ctx, eventType, userSub, state, metadata)
}

func (c *Client) emitWithState(ctx context.Context, eventType ActivityEventType, userSub string, state SessionState, metadata map[string]any) {
	event := ActivityEvent{
		ID:         uuid.NewString(),
		EventType:  eventType,
		UserSub:    userSub,
		ToState:    state,
		Metadata:   metadata,
		OccurredAt: c.now(),
	}

	sink := normalizeActivitySink(c.sink)
	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}
