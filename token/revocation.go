package token

import (
	"sync"
	"time"
)

// RevocationList remembers access tokens that were logged out before expiry.
type RevocationList interface {
	Add(jti string, exp time.Time)
	IsRevoked(jti string) bool
	Cleanup() // Remove entries whose tokens would have expired anyway
}

// InMemoryRevocationList is a simple in-memory implementation
type InMemoryRevocationList struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
	nowFunc func() time.Time
}

func NewInMemoryRevocationList(now func() time.Time) *InMemoryRevocationList {
	if now == nil {
		now = time.Now
	}
	return &InMemoryRevocationList{
		revoked: make(map[string]time.Time),
		nowFunc: now,
	}
}

var _ RevocationList = (*InMemoryRevocationList)(nil)

func (c *InMemoryRevocationList) Add(jti string, exp time.Time) {
	if jti == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
}

func (c *InMemoryRevocationList) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

func (c *InMemoryRevocationList) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
}
