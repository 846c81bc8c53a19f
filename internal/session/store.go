// Package session keeps per-browser-session memory that must survive a page reload,
// such as the wallet provider a visitor last connected with.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/yourorg/insight-wallet/internal/wallet"
)

// CookieName is the cookie carrying the browser session id
const CookieName = "insight_session"

const providerKeyPrefix = "provider:"

// Store holds session memory in an expiring in-process cache
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewStore creates a store whose entries expire ttl after their last write
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		cache: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

// NewID returns a fresh browser session id
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like one NewID produced
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// TTL is how long a session is remembered
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// For returns the wallet session bridge of one browser session
func (s *Store) For(sessionID string) wallet.SessionStore {
	return &walletMemory{store: s, key: providerKeyPrefix + sessionID}
}

// Len returns the number of live entries
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

type walletMemory struct {
	store *Store
	key   string
}

func (m *walletMemory) Remember(key string) {
	m.store.cache.Set(m.key, key, cache.DefaultExpiration)
}

func (m *walletMemory) Forget() {
	m.store.cache.Delete(m.key)
}

func (m *walletMemory) Recall() (string, bool) {
	v, found := m.store.cache.Get(m.key)
	if !found {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
