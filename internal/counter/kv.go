package counter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jonesrussell/linkbio/internal/kvstore"
)

// KV stores the tally as one JSON object under Key and rewrites the whole
// object on every increment.
//
// The mutex only serializes callers sharing this value. Two KV instances over
// the same profile (two concurrent requests from one visitor) can still lose
// an update, last write wins. Use Redis when that matters.
type KV struct {
	mu    sync.Mutex
	store kvstore.Store
}

// NewKV creates a tally over a profile-scoped store.
func NewKV(store kvstore.Store) *KV {
	return &KV{store: store}
}

// load returns an empty tally for a missing or unreadable blob.
func (k *KV) load(ctx context.Context) (map[string]int, error) {
	raw, ok, err := k.store.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("read tally: %w", err)
	}

	tally := make(map[string]int)
	if !ok {
		return tally, nil
	}
	if jsonErr := json.Unmarshal([]byte(raw), &tally); jsonErr != nil {
		return make(map[string]int), nil //nolint:nilerr // corrupt tally starts over
	}
	return tally, nil
}

// Get implements Store.
func (k *KV) Get(ctx context.Context, linkID string) (int, error) {
	tally, err := k.load(ctx)
	if err != nil {
		return 0, err
	}
	return tally[linkID], nil
}

// Increment implements Store.
func (k *KV) Increment(ctx context.Context, linkID string) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	tally, err := k.load(ctx)
	if err != nil {
		return 0, err
	}
	tally[linkID]++

	raw, err := json.Marshal(tally)
	if err != nil {
		return 0, fmt.Errorf("encode tally: %w", err)
	}
	if setErr := k.store.Set(ctx, Key, string(raw)); setErr != nil {
		return 0, fmt.Errorf("write tally: %w", setErr)
	}
	return tally[linkID], nil
}

// All implements Store.
func (k *KV) All(ctx context.Context) (map[string]int, error) {
	return k.load(ctx)
}

// Reset implements Store.
func (k *KV) Reset(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.store.Delete(ctx, Key); err != nil {
		return fmt.Errorf("delete tally: %w", err)
	}
	return nil
}
