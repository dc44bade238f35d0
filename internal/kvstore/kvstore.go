// Package kvstore provides the durable key-value storage behind visitor
// scopes. A profile scope lives as long as the visitor's profile cookie; a
// session scope expires with the browsing session.
package kvstore

import "context"

// Store is a string key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// ProfilePrefix returns the key prefix of a visitor profile scope.
func ProfilePrefix(profileID string) string {
	return "profile:" + profileID + ":"
}

// SessionPrefix returns the key prefix of a browsing session scope.
func SessionPrefix(sessionID string) string {
	return "session:" + sessionID + ":"
}

type scoped struct {
	base   Store
	prefix string
}

// Scope returns a view of base where every key is prefixed with prefix.
func Scope(base Store, prefix string) Store {
	return &scoped{base: base, prefix: prefix}
}

func (s *scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.base.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.base.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefix + k
	}
	return s.base.Delete(ctx, prefixed...)
}
