// Package consent gates analytics behind the visitor's stored decision.
//
// Only the Gate hands out trackers: an active one when the decision is
// accepted, a no-op one otherwise.
package consent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/linkbio/internal/counter"
	"github.com/jonesrussell/linkbio/internal/kvstore"
	"github.com/jonesrussell/linkbio/internal/tracking"
	infralogger "github.com/jonesrussell/linkbio/infrastructure/logger"
)

// Key is the profile-scoped storage key of the decision.
const Key = "analytics_consent"

// legacyTallyKey held the click tally before link_clicks_v1.
const legacyTallyKey = "linkClicks"

// Decision is the visitor's consent choice.
type Decision string

// Decisions. Unset is never stored.
const (
	Unset    Decision = ""
	Accepted Decision = "accepted"
	Declined Decision = "declined"
)

// ErrInvalidDecision is returned by ParseDecision.
var ErrInvalidDecision = errors.New("invalid consent decision")

// ParseDecision accepts "accepted" or "declined" and their verb forms.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case string(Accepted), "accept":
		return Accepted, nil
	case string(Declined), "decline":
		return Declined, nil
	}
	return Unset, fmt.Errorf("%w: %q", ErrInvalidDecision, s)
}

// State is the result of Init.
type State struct {
	Decision Decision `json:"decision"`
	// PromptRequired asks the host to show the consent prompt.
	PromptRequired bool `json:"prompt_required"`
}

// Gate reads and records the consent decision of one visitor.
type Gate struct {
	profile  kvstore.Store
	session  kvstore.Store
	tally    counter.Store
	log      infralogger.Logger
	onAccept func(ctx context.Context)
}

// Option configures a Gate.
type Option func(*Gate)

// WithAcceptHook runs fn after an accepted decision is stored. Hosts use it
// to re-run initialization.
func WithAcceptHook(fn func(ctx context.Context)) Option {
	return func(g *Gate) { g.onAccept = fn }
}

// NewGate creates a Gate over the visitor's profile and session scopes.
func NewGate(profile, session kvstore.Store, tally counter.Store, log infralogger.Logger, opts ...Option) *Gate {
	g := &Gate{
		profile: profile,
		session: session,
		tally:   tally,
		log:     log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Decision returns the stored decision. Unrecognized values read as Unset.
func (g *Gate) Decision(ctx context.Context) (Decision, error) {
	v, ok, err := g.profile.Get(ctx, Key)
	if err != nil {
		return Unset, fmt.Errorf("read consent: %w", err)
	}
	if !ok {
		return Unset, nil
	}
	d, err := ParseDecision(v)
	if err != nil {
		g.log.Warn("Ignoring unrecognized consent value", infralogger.String("value", v))
		return Unset, nil
	}
	return d, nil
}

// Init evaluates the decision for a page load. A declined visitor has the
// purge re-applied so nothing collected earlier survives.
func (g *Gate) Init(ctx context.Context) (State, error) {
	d, err := g.Decision(ctx)
	if err != nil {
		return State{}, err
	}

	switch d {
	case Unset:
		return State{Decision: Unset, PromptRequired: true}, nil
	case Declined:
		if purgeErr := g.purge(ctx); purgeErr != nil {
			return State{}, purgeErr
		}
	case Accepted:
	}
	return State{Decision: d}, nil
}

// Accept stores the accepted decision and fires the accept hook.
func (g *Gate) Accept(ctx context.Context) error {
	if err := g.profile.Set(ctx, Key, string(Accepted)); err != nil {
		return fmt.Errorf("store consent: %w", err)
	}
	if g.onAccept != nil {
		g.onAccept(ctx)
	}
	return nil
}

// Decline stores the declined decision, disables t when given and purges the
// local tally and session identifier.
func (g *Gate) Decline(ctx context.Context, t tracking.Tracker) error {
	if err := g.profile.Set(ctx, Key, string(Declined)); err != nil {
		return fmt.Errorf("store consent: %w", err)
	}
	if t != nil {
		t.Disable()
	}
	return g.purge(ctx)
}

func (g *Gate) purge(ctx context.Context) error {
	if err := g.tally.Reset(ctx); err != nil {
		return fmt.Errorf("purge click tally: %w", err)
	}
	if err := g.profile.Delete(ctx, legacyTallyKey); err != nil {
		return fmt.Errorf("purge legacy click tally: %w", err)
	}
	if err := g.session.Delete(ctx, tracking.SessionIDKey); err != nil {
		return fmt.Errorf("purge session id: %w", err)
	}
	return nil
}

// Select returns activate() when the decision is accepted and a no-op
// tracker over the tally otherwise.
func (g *Gate) Select(ctx context.Context, activate func() tracking.Tracker) (tracking.Tracker, error) {
	d, err := g.Decision(ctx)
	if err != nil {
		return tracking.NewNop(g.tally), err
	}
	if d != Accepted {
		return tracking.NewNop(g.tally), nil
	}
	return activate(), nil
}
