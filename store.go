package userpool

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

// The five logical slots. The token store owns them exclusively; no other
// component writes them directly.
const (
	slotAccessToken  = "access_token"
	slotIDToken      = "id_token"
	slotRefreshToken = "refresh_token"
	slotTokenExpires = "token_expires"
	slotUserSub      = "user_sub"
)

var allSlots = []string{
	slotAccessToken,
	slotIDToken,
	slotRefreshToken,
	slotTokenExpires,
	slotUserSub,
}

// TokenStore persists one session's credentials in a namespaced keyring.
// Expiry is stored as absolute epoch milliseconds.
type TokenStore struct {
	ring   Keyring
	prefix string
	now    Clock
}

// NewTokenStore wraps a keyring under the given namespace. Two stores with
// different namespaces over the same keyring never see each other's slots.
func NewTokenStore(ring Keyring, namespace string) *TokenStore {
	prefix := ""
	if namespace != "" {
		prefix = namespace + "."
	}
	return &TokenStore{
		ring:   ring,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (s *TokenStore) WithClock(clock Clock) *TokenStore {
	if clock != nil {
		s.now = clock
	}
	return s
}

func (s *TokenStore) key(slot string) string {
	return s.prefix + slot
}

// Save writes the set to the keyring, overwriting the previous set
// wholesale. When the set omits a refresh token the previously stored one
// keeps standing, matching the provider's behavior on refresh responses.
func (s *TokenStore) Save(ctx context.Context, set TokenSet) error {
	if err := s.ring.Set(ctx, s.key(slotAccessToken), set.AccessToken); err != nil {
		return err
	}
	if err := s.ring.Set(ctx, s.key(slotIDToken), set.IDToken); err != nil {
		return err
	}
	if set.RefreshToken != "" {
		if err := s.ring.Set(ctx, s.key(slotRefreshToken), set.RefreshToken); err != nil {
			return err
		}
	}
	expires := strconv.FormatInt(set.ExpiresAt.UnixMilli(), 10)
	return s.ring.Set(ctx, s.key(slotTokenExpires), expires)
}

// SaveUserSub records the user's subject identifier.
func (s *TokenStore) SaveUserSub(ctx context.Context, sub string) error {
	return s.ring.Set(ctx, s.key(slotUserSub), sub)
}

// Load reconstructs the stored set. A set with no credentials means no
// session exists.
func (s *TokenStore) Load(ctx context.Context) (TokenSet, error) {
	set := TokenSet{}

	var err error
	if set.AccessToken, _, err = s.get(ctx, slotAccessToken); err != nil {
		return TokenSet{}, err
	}
	if set.IDToken, _, err = s.get(ctx, slotIDToken); err != nil {
		return TokenSet{}, err
	}
	if set.RefreshToken, _, err = s.get(ctx, slotRefreshToken); err != nil {
		return TokenSet{}, err
	}

	raw, ok, err := s.get(ctx, slotTokenExpires)
	if err != nil {
		return TokenSet{}, err
	}
	if ok && raw != "" {
		ms, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			return TokenSet{}, errors.Wrap(parseErr, errors.CategoryOperation, "corrupt token expiry slot")
		}
		set.ExpiresAt = time.UnixMilli(ms)
	}

	return set, nil
}

// AccessToken returns the stored access token without any expiry check.
func (s *TokenStore) AccessToken(ctx context.Context) (string, error) {
	token, _, err := s.get(ctx, slotAccessToken)
	return token, err
}

// IDToken returns the stored ID token without any expiry check.
func (s *TokenStore) IDToken(ctx context.Context) (string, error) {
	token, _, err := s.get(ctx, slotIDToken)
	return token, err
}

// RefreshToken returns the stored refresh token.
func (s *TokenStore) RefreshToken(ctx context.Context) (string, error) {
	token, _, err := s.get(ctx, slotRefreshToken)
	return token, err
}

// UserSub returns the stored subject identifier.
func (s *TokenStore) UserSub(ctx context.Context) (string, error) {
	sub, _, err := s.get(ctx, slotUserSub)
	return sub, err
}

// IsExpired reports whether the stored set needs a refresh. Missing expiry
// and keyring read failures both count as expired: the caller ends up on the
// refresh path, which fails closed.
func (s *TokenStore) IsExpired(ctx context.Context) bool {
	set, err := s.Load(ctx)
	if err != nil {
		return true
	}
	return set.Expired(s.now())
}

// Clear removes all five slots. Individual deletions are not observable as
// a partial state from this process's point of view.
func (s *TokenStore) Clear(ctx context.Context) error {
	keys := make([]string, len(allSlots))
	for i, slot := range allSlots {
		keys[i] = s.key(slot)
	}
	return s.ring.Delete(ctx, keys...)
}

func (s *TokenStore) get(ctx context.Context, slot string) (string, bool, error) {
	return s.ring.Get(ctx, s.key(slot))
}

// MemoryKeyring is a process-local keyring for tests and ephemeral sessions.
type MemoryKeyring struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKeyring returns an empty in-memory keyring.
func NewMemoryKeyring() *MemoryKeyring {
	return &MemoryKeyring{values: map[string]string{}}
}

// Get implements Keyring.
func (m *MemoryKeyring) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

// Set implements Keyring.
func (m *MemoryKeyring) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete implements Keyring.
func (m *MemoryKeyring) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}
