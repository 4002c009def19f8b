package dataforseo

import (
	"encoding/base64"
	"sync"
	"time"
)

// credentialCache holds the computed Authorization header value with an
// expiry window. The provider rotates signed credentials periodically;
// recomputing inside the refresh window keeps requests valid without a
// process-wide mutable global.
type credentialCache struct {
	mu       sync.Mutex
	login    string
	password string
	ttl      time.Duration

	header    string
	expiresAt time.Time
}

func newCredentialCache(login, password string, ttl time.Duration) *credentialCache {
	return &credentialCache{login: login, password: password, ttl: ttl}
}

// getOrRefresh returns the cached header, rebuilding it when expired.
func (c *credentialCache) getOrRefresh() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.header == "" || now.After(c.expiresAt) {
		raw := base64.StdEncoding.EncodeToString([]byte(c.login + ":" + c.password))
		c.header = "Basic " + raw
		c.expiresAt = now.Add(c.ttl)
	}
	return c.header
}
