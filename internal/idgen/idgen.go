// Package idgen generates session correlation identifiers.
package idgen

import (
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

// Generator returns a new identifier.
type Generator func() string

// lockedSource feeds uuid from a shared non-cryptographic PRNG. Session ids
// are correlation keys, not secrets.
type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (s *lockedSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range p {
		p[i] = byte(s.rnd.Uint32())
	}
	return len(p), nil
}

var source = &lockedSource{
	rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // not a security token
}

// SessionID returns a 36-character version 4 layout identifier
// (xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx, y in 8..b).
func SessionID() string {
	id, err := uuid.NewRandomFromReader(source)
	if err != nil {
		// lockedSource never fails
		return uuid.NewString()
	}
	return id.String()
}
