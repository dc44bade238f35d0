// Package counter keeps the profile-scoped local click tally that backs the
// on-page counters. It is independent of remote tracking.
package counter

import "context"

// Key is the storage key of the tally.
const Key = "link_clicks_v1"

// Store is a per-profile map of link id to click count.
type Store interface {
	// Get returns the count for linkID, 0 when absent.
	Get(ctx context.Context, linkID string) (int, error)
	// Increment adds one click to linkID and returns the new count.
	Increment(ctx context.Context, linkID string) (int, error)
	// All returns the whole tally.
	All(ctx context.Context) (map[string]int, error)
	// Reset removes the whole tally.
	Reset(ctx context.Context) error
}
