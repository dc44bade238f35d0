// Package tracking records page visits and link clicks to the remote sink
// and maintains the local click tally.
//
// Remote tracking is best effort. A Client decides once, at construction,
// whether it can reach the sink; after that, insert failures are logged and
// dropped without retry and never change that decision.
package tracking

import (
	"context"
	"net/url"
)

// SessionIDKey is the session-scoped storage key of the session identifier.
const SessionIDKey = "analytics_session_id"

// Tracker is the analytics surface handed to the landing page host.
type Tracker interface {
	// TrackPageVisit inserts a page visit in the background. The channel
	// yields the insert outcome and is closed afterwards; callers need not
	// read it.
	TrackPageVisit(ctx context.Context) <-chan error
	// TrackLinkClick inserts a link click in the background.
	TrackLinkClick(ctx context.Context, linkID string) <-chan error
	// LocalClickStats returns the local tally for linkID.
	LocalClickStats(ctx context.Context, linkID string) (int, error)
	// SaveLocalClickStats increments the local tally for linkID.
	SaveLocalClickStats(ctx context.Context, linkID string) (int, error)
	SessionID() string
	Disabled() bool
	// Disable stops all further remote inserts.
	Disable()
}

// Environment describes the page load being tracked.
type Environment interface {
	// Referrer is the raw referring URL, possibly empty.
	Referrer() string
	UserAgent() string
}

// StaticEnvironment is an Environment with fixed values.
type StaticEnvironment struct {
	RawReferrer string
	RawUA       string
}

// Referrer implements Environment.
func (e StaticEnvironment) Referrer() string { return e.RawReferrer }

// UserAgent implements Environment.
func (e StaticEnvironment) UserAgent() string { return e.RawUA }

// ReferrerHost returns the hostname of raw, or "" when raw is empty or not an
// absolute URL.
func ReferrerHost(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return ""
	}
	return u.Hostname()
}

func closedChan() <-chan error {
	ch := make(chan error)
	close(ch)
	return ch
}
