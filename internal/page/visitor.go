// Package page hosts the landing page API: profile and links, the consent
// prompt and tracked link redirects.
package page

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonesrussell/linkbio/internal/counter"
	"github.com/jonesrussell/linkbio/internal/kvstore"
	"github.com/redis/go-redis/v9"
)

// Cookie names of the visitor scopes.
const (
	ProfileCookie = "lb_profile"
	SessionCookie = "lb_session"
)

// Scopes are the storage views of one visitor.
type Scopes struct {
	Profile kvstore.Store
	Session kvstore.Store
	Tally   counter.Store
}

// Backend opens the scopes of a visitor by cookie identifiers.
type Backend interface {
	Open(profileID, sessionID string) Scopes
}

// KVBackend keeps profiles and sessions in two key-value stores, normally
// in-memory stores with different TTLs. The tally is a JSON blob in the
// profile scope.
type KVBackend struct {
	profiles kvstore.Store
	sessions kvstore.Store
}

// NewKVBackend creates a KVBackend.
func NewKVBackend(profiles, sessions kvstore.Store) *KVBackend {
	return &KVBackend{profiles: profiles, sessions: sessions}
}

// Open implements Backend.
func (b *KVBackend) Open(profileID, sessionID string) Scopes {
	profile := kvstore.Scope(b.profiles, kvstore.ProfilePrefix(profileID))
	return Scopes{
		Profile: profile,
		Session: kvstore.Scope(b.sessions, kvstore.SessionPrefix(sessionID)),
		Tally:   counter.NewKV(profile),
	}
}

// RedisBackend keeps every scope in Redis and counts clicks with HINCRBY.
type RedisBackend struct {
	client     *redis.Client
	profiles   kvstore.Store
	sessions   kvstore.Store
	profileTTL time.Duration
}

// NewRedisBackend creates a RedisBackend. Profile keys, the tally included,
// expire after profileTTL and session keys after sessionTTL of inactivity.
func NewRedisBackend(client *redis.Client, profileTTL, sessionTTL time.Duration) *RedisBackend {
	return &RedisBackend{
		client:     client,
		profiles:   kvstore.NewRedis(client, profileTTL),
		sessions:   kvstore.NewRedis(client, sessionTTL),
		profileTTL: profileTTL,
	}
}

// Open implements Backend.
func (b *RedisBackend) Open(profileID, sessionID string) Scopes {
	prefix := kvstore.ProfilePrefix(profileID)
	return Scopes{
		Profile: kvstore.Scope(b.profiles, prefix),
		Session: kvstore.Scope(b.sessions, kvstore.SessionPrefix(sessionID)),
		Tally:   counter.NewRedis(b.client, prefix, b.profileTTL),
	}
}

// CookieConfig controls the visitor cookies.
type CookieConfig struct {
	ProfileMaxAge time.Duration
	Secure        bool
}

// visitorID returns the id in cookie name, issuing a fresh one when the
// cookie is missing or malformed. maxAge 0 issues a browser-session cookie.
func visitorID(c *gin.Context, name string, maxAge time.Duration, secure bool) string {
	if v, err := c.Cookie(name); err == nil {
		if _, parseErr := uuid.Parse(v); parseErr == nil {
			return v
		}
	}

	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, id, int(maxAge/time.Second), "/", "", secure, true)
	return id
}
