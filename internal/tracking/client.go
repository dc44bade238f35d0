package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/linkbio/internal/counter"
	"github.com/jonesrussell/linkbio/internal/domain"
	"github.com/jonesrussell/linkbio/internal/idgen"
	"github.com/jonesrussell/linkbio/internal/kvstore"
	"github.com/jonesrussell/linkbio/internal/sink"
	infralogger "github.com/jonesrussell/linkbio/infrastructure/logger"
)

// Config selects and addresses the remote sink.
type Config struct {
	Driver     string
	Endpoint   string
	Credential string
}

// Stores are the visitor scopes a Client reads and writes.
type Stores struct {
	// Session holds the session identifier.
	Session kvstore.Store
	// Tally is the profile's local click tally.
	Tally counter.Store
}

// Client is the active Tracker.
type Client struct {
	sink      sink.Inserter
	sessionID string
	env       Environment
	tally     counter.Store
	log       infralogger.Logger
	now       func() time.Time
	newID     idgen.Generator
	lookup    func(driver string) (sink.Factory, error)
	metrics   *Metrics
	disabled  atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithIDGenerator overrides idgen.SessionID.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(c *Client) { c.newID = gen }
}

// WithSinkLookup overrides sink.Lookup.
func WithSinkLookup(lookup func(driver string) (sink.Factory, error)) Option {
	return func(c *Client) { c.lookup = lookup }
}

// WithMetrics records outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New constructs a Client for a fresh page load and, unless disabled,
// immediately records one page visit. It never fails: any problem with the
// sink configuration yields a disabled Client.
func New(
	ctx context.Context,
	cfg Config,
	env Environment,
	stores Stores,
	log infralogger.Logger,
	opts ...Option,
) *Client {
	c := build(ctx, cfg, env, stores, log, opts)
	if !c.Disabled() {
		c.TrackPageVisit(ctx)
	}
	return c
}

// Resume constructs a Client for a later interaction within the same page
// session. It records nothing on its own.
func Resume(
	ctx context.Context,
	cfg Config,
	env Environment,
	stores Stores,
	log infralogger.Logger,
	opts ...Option,
) *Client {
	return build(ctx, cfg, env, stores, log, opts)
}

func build(
	ctx context.Context,
	cfg Config,
	env Environment,
	stores Stores,
	log infralogger.Logger,
	opts []Option,
) *Client {
	c := &Client{
		env:    env,
		tally:  stores.Tally,
		log:    log,
		now:    time.Now,
		newID:  idgen.SessionID,
		lookup: sink.Lookup,
	}
	for _, opt := range opts {
		opt(c)
	}

	id, err := GetOrCreateSessionID(ctx, stores.Session, c.newID)
	if err != nil {
		c.log.Warn("Session storage unavailable, using an ephemeral session id", infralogger.Error(err))
	}
	c.sessionID = id

	ins, reason, err := c.connect(cfg)
	if err != nil {
		c.disabled.Store(true)
		c.metrics.observeDisabled(reason)
		c.log.Warn("Analytics disabled",
			infralogger.String("reason", reason),
			infralogger.String("driver", cfg.Driver),
			infralogger.Error(err),
		)
		return c
	}
	c.sink = ins
	return c
}

func (c *Client) connect(cfg Config) (sink.Inserter, string, error) {
	factory, err := c.lookup(cfg.Driver)
	if err != nil {
		return nil, "unknown_driver", err
	}
	if err = sink.CheckConfigured(cfg.Endpoint, cfg.Credential); err != nil {
		return nil, "not_configured", err
	}
	ins, err := factory(cfg.Endpoint, cfg.Credential)
	if err != nil {
		return nil, "client_error", fmt.Errorf("create sink client: %w", err)
	}
	if ins == nil {
		return nil, "client_error", errors.New("sink factory returned no client")
	}
	return ins, "", nil
}

// GetOrCreateSessionID returns the session identifier cached in session,
// generating and caching a new one when absent. A storage error still yields
// a usable identifier.
func GetOrCreateSessionID(ctx context.Context, session kvstore.Store, gen idgen.Generator) (string, error) {
	id, ok, err := session.Get(ctx, SessionIDKey)
	if err != nil {
		return gen(), fmt.Errorf("read session id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}

	id = gen()
	if setErr := session.Set(ctx, SessionIDKey, id); setErr != nil {
		return id, fmt.Errorf("store session id: %w", setErr)
	}
	return id, nil
}

// TrackPageVisit implements Tracker.
func (c *Client) TrackPageVisit(ctx context.Context) <-chan error {
	if c.Disabled() {
		return closedChan()
	}
	return c.insert(ctx, domain.PageVisit{
		SessionID: c.sessionID,
		Referrer:  domain.NullableString(c.Referrer()),
		UserAgent: domain.TruncateUserAgent(c.env.UserAgent()),
		CreatedAt: c.now().UTC(),
	})
}

// TrackLinkClick implements Tracker.
func (c *Client) TrackLinkClick(ctx context.Context, linkID string) <-chan error {
	if c.Disabled() {
		return closedChan()
	}
	return c.insert(ctx, domain.LinkClick{
		LinkID:    linkID,
		SessionID: c.sessionID,
		Referrer:  domain.NullableString(c.Referrer()),
		UserAgent: domain.TruncateUserAgent(c.env.UserAgent()),
		ClickedAt: c.now().UTC(),
	})
}

// insert runs one insert detached from the caller's cancellation. Deadlines
// belong to the sink client.
func (c *Client) insert(ctx context.Context, rec domain.Record) <-chan error {
	done := make(chan error, 1)
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(done)

		err := c.sink.Insert(ctx, rec)
		c.metrics.observeInsert(rec.Table(), err)
		if err != nil {
			c.log.Warn("Analytics insert failed",
				infralogger.String("table", rec.Table()),
				infralogger.String("session_id", c.sessionID),
				infralogger.Error(err),
			)
		}
		done <- err
	}()

	return done
}

// Referrer returns the referring host of the tracked page, or "".
func (c *Client) Referrer() string {
	return ReferrerHost(c.env.Referrer())
}

// LocalClickStats implements Tracker.
func (c *Client) LocalClickStats(ctx context.Context, linkID string) (int, error) {
	return c.tally.Get(ctx, linkID)
}

// SaveLocalClickStats implements Tracker.
func (c *Client) SaveLocalClickStats(ctx context.Context, linkID string) (int, error) {
	return c.tally.Increment(ctx, linkID)
}

// SessionID implements Tracker.
func (c *Client) SessionID() string { return c.sessionID }

// Disabled implements Tracker.
func (c *Client) Disabled() bool { return c.disabled.Load() }

// Disable implements Tracker.
func (c *Client) Disable() { c.disabled.Store(true) }
