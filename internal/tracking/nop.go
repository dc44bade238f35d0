package tracking

import (
	"context"

	"github.com/jonesrussell/linkbio/internal/counter"
)

// Nop never contacts the sink. The local tally still works.
type Nop struct {
	tally counter.Store
}

// NewNop returns a disabled tracker over tally.
func NewNop(tally counter.Store) *Nop {
	return &Nop{tally: tally}
}

// TrackPageVisit implements Tracker.
func (n *Nop) TrackPageVisit(context.Context) <-chan error { return closedChan() }

// TrackLinkClick implements Tracker.
func (n *Nop) TrackLinkClick(context.Context, string) <-chan error { return closedChan() }

// LocalClickStats implements Tracker.
func (n *Nop) LocalClickStats(ctx context.Context, linkID string) (int, error) {
	return n.tally.Get(ctx, linkID)
}

// SaveLocalClickStats implements Tracker.
func (n *Nop) SaveLocalClickStats(ctx context.Context, linkID string) (int, error) {
	return n.tally.Increment(ctx, linkID)
}

// SessionID implements Tracker.
func (n *Nop) SessionID() string { return "" }

// Disabled implements Tracker.
func (n *Nop) Disabled() bool { return true }

// Disable implements Tracker.
func (n *Nop) Disable() {}
