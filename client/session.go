package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenKey          = "token"
	draftCachePrefix  = "draft_cache_"
	legacyDraftKey    = "draft_cache"
	collectionsPrefix = "collections_"
	savedPostsKey     = "saved_posts"
)

// ErrNoSession means no usable credential is stored.
var ErrNoSession = errors.New("client: no active session")

// Identity is the account a credential was issued to, as read from its claims.
type Identity struct {
	ID       string
	Username string
	Role     string
}

type credentialClaims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Session keeps the bearer credential in tab storage and owns the durable
// caches tied to it. Switching or dropping the credential purges draft caches
// so the next account never sees the previous one's work.
type Session struct {
	tab     Storage
	durable Storage
	drafts  *DraftCache
	now     func() time.Time
}

// NewSession binds a session to its tab-scoped and durable storages.
func NewSession(tab, durable Storage) *Session {
	return &Session{tab: tab, durable: durable, drafts: NewDraftCache(durable), now: time.Now}
}

// Drafts returns the draft cache living in durable storage.
func (s *Session) Drafts() *DraftCache { return s.drafts }

// Durable returns the storage that outlives the tab.
func (s *Session) Durable() Storage { return s.durable }

// StoreCredential installs token for this tab only.
func (s *Session) StoreCredential(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("client: empty credential")
	}
	if err := s.drafts.PurgeAll(); err != nil {
		return fmt.Errorf("purge draft caches: %w", err)
	}
	if err := s.tab.Set(tokenKey, token); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return s.durable.Delete(tokenKey)
}

// ReadCredential returns the stored token while it is unexpired.
// The signature is not checked here; the server does that on every call.
func (s *Session) ReadCredential() (string, error) {
	token, ok := s.tab.Get(tokenKey)
	if !ok || token == "" {
		return "", ErrNoSession
	}
	claims, err := decodeClaims(token)
	if err != nil {
		_ = s.tab.Delete(tokenKey)
		return "", ErrNoSession
	}
	if claims.ExpiresAt != nil && s.now().After(claims.ExpiresAt.Time) {
		_ = s.ClearCredential()
		return "", ErrNoSession
	}
	return token, nil
}

// ClearCredential drops the token from both storages and purges draft caches.
func (s *Session) ClearCredential() error {
	return errors.Join(
		s.tab.Delete(tokenKey),
		s.durable.Delete(tokenKey),
		s.drafts.PurgeAll(),
	)
}

// MigrateLegacy moves a token left in durable storage by older clients into
// tab storage. It reports whether anything moved.
func (s *Session) MigrateLegacy() (bool, error) {
	if t, ok := s.tab.Get(tokenKey); ok && t != "" {
		return false, nil
	}
	legacy, ok := s.durable.Get(tokenKey)
	if !ok || legacy == "" {
		return false, nil
	}
	if err := s.tab.Set(tokenKey, legacy); err != nil {
		return false, err
	}
	return true, s.durable.Delete(tokenKey)
}

// Identity decodes the current credential.
func (s *Session) Identity() (Identity, error) {
	token, err := s.ReadCredential()
	if err != nil {
		return Identity{}, err
	}
	claims, err := decodeClaims(token)
	if err != nil {
		return Identity{}, ErrNoSession
	}
	return Identity{ID: claims.UserID, Username: claims.Username, Role: claims.Role}, nil
}

func decodeClaims(token string) (*credentialClaims, error) {
	claims := &credentialClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
