package config

import "time"

type CacheConfig interface {
	GetStaleTime() time.Duration
	GetGCTime() time.Duration
	GetUnreadPollInterval() time.Duration
	GetSessionCheckInterval() time.Duration
}

type Cache struct {
	file values
}

var _ CacheConfig = Cache{}

func (c Cache) GetStaleTime() time.Duration {
	return c.file.getDuration("CACHE_STALE_TIME", 5*time.Minute)
}

func (c Cache) GetGCTime() time.Duration {
	return c.file.getDuration("CACHE_GC_TIME", 10*time.Minute)
}

func (c Cache) GetUnreadPollInterval() time.Duration {
	return c.file.getDuration("UNREAD_POLL_INTERVAL", 30*time.Second)
}

func (c Cache) GetSessionCheckInterval() time.Duration {
	return c.file.getDuration("SESSION_CHECK_INTERVAL", 30*time.Second)
}

type MockConfig interface {
	GetPort() string
	GetAccessTokenExpiry() time.Duration
	GetSigningSecret() string
}

type Mock struct {
	file values
}

var _ MockConfig = Mock{}

func (m Mock) GetAccessTokenExpiry() time.Duration {
	return m.file.getDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (m Mock) GetSigningSecret() string {
	return m.file.get("SIGNING_SECRET", "dev-signing-secret")
}
