package page

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/linkbio/internal/consent"
	"github.com/jonesrussell/linkbio/internal/domain"
	"github.com/jonesrussell/linkbio/internal/middleware"
	"github.com/jonesrussell/linkbio/internal/tracking"
	infralogger "github.com/jonesrussell/linkbio/infrastructure/logger"
)

// ReferrerKey is the session-scoped key of the landing page's referrer. Link
// clicks report the referrer of the page they were made from.
const ReferrerKey = "analytics_page_referrer"

// Config wires a Handler.
type Config struct {
	Profile domain.Profile
	Backend Backend
	Remote  tracking.Config
	Cookies CookieConfig
	// TrackingOptions are passed to every tracker.
	TrackingOptions []tracking.Option
}

// Handler serves the landing page API.
type Handler struct {
	profile   domain.Profile
	backend   Backend
	remote    tracking.Config
	cookies   CookieConfig
	trackOpts []tracking.Option
	logger    infralogger.Logger
}

// NewHandler creates a Handler.
func NewHandler(cfg Config, log infralogger.Logger) *Handler {
	return &Handler{
		profile:   cfg.Profile,
		backend:   cfg.Backend,
		remote:    cfg.Remote,
		cookies:   cfg.Cookies,
		trackOpts: cfg.TrackingOptions,
		logger:    log,
	}
}

// LinkView is a link with the visitor's local click count.
type LinkView struct {
	domain.Link
	Clicks int `json:"clicks"`
}

// PageResponse is the landing page payload.
type PageResponse struct {
	Name           string        `json:"name"`
	Bio            string        `json:"bio,omitempty"`
	Avatar         string        `json:"avatar,omitempty"`
	Links          []LinkView    `json:"links"`
	Consent        consent.State `json:"consent"`
	TrackingActive bool          `json:"tracking_active"`
}

// ConsentRequest records a consent decision.
type ConsentRequest struct {
	Decision string `binding:"required" json:"decision"`
}

// ClickResponse reports a recorded click.
type ClickResponse struct {
	LinkID string `json:"link_id"`
	Clicks int    `json:"clicks"`
}

func (h *Handler) scopes(c *gin.Context) Scopes {
	profileID := visitorID(c, ProfileCookie, h.cookies.ProfileMaxAge, h.cookies.Secure)
	sessionID := visitorID(c, SessionCookie, 0, h.cookies.Secure)
	return h.backend.Open(profileID, sessionID)
}

func (h *Handler) gate(s Scopes, opts ...consent.Option) *consent.Gate {
	return consent.NewGate(s.Profile, s.Session, s.Tally, h.logger, opts...)
}

func (h *Handler) trackingStores(s Scopes) tracking.Stores {
	return tracking.Stores{Session: s.Session, Tally: s.Tally}
}

// Page returns the profile and evaluates consent. With consent and a human
// visitor, the page visit is recorded. The page's own referrer arrives as
// ?referrer= since the request's Referer header is the page itself.
func (h *Handler) Page(c *gin.Context) {
	ctx := c.Request.Context()
	s := h.scopes(c)
	gate := h.gate(s)

	state, err := gate.Init(ctx)
	if err != nil {
		h.logger.Warn("Consent state unavailable", infralogger.Error(err))
		state = consent.State{Decision: consent.Unset, PromptRequired: true}
	}

	var t tracking.Tracker = tracking.NewNop(s.Tally)
	if !middleware.IsBot(c) {
		t, err = gate.Select(ctx, func() tracking.Tracker {
			return h.startPage(ctx, c, s)
		})
		if err != nil {
			h.logger.Warn("Tracking not started", infralogger.Error(err))
		}
	}

	resp := PageResponse{
		Name:           h.profile.Name,
		Bio:            h.profile.Bio,
		Avatar:         h.profile.Avatar,
		Links:          make([]LinkView, 0, len(h.profile.Links)),
		Consent:        state,
		TrackingActive: !t.Disabled(),
	}
	for _, l := range h.profile.Links {
		n, statErr := t.LocalClickStats(ctx, l.ID)
		if statErr != nil {
			h.logger.Warn("Click tally unavailable",
				infralogger.String("link_id", l.ID),
				infralogger.Error(statErr),
			)
		}
		resp.Links = append(resp.Links, LinkView{Link: l, Clicks: n})
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) startPage(ctx context.Context, c *gin.Context, s Scopes) tracking.Tracker {
	referrer := c.Query("referrer")
	if err := s.Session.Set(ctx, ReferrerKey, referrer); err != nil {
		h.logger.Warn("Failed to remember page referrer", infralogger.Error(err))
	}
	env := tracking.StaticEnvironment{RawReferrer: referrer, RawUA: c.Request.UserAgent()}
	return tracking.New(ctx, h.remote, env, h.trackingStores(s), h.logger, h.trackOpts...)
}

// Consent stores the visitor's decision. Accepting asks the page to reload
// so initialization runs again under the new decision.
func (h *Handler) Consent(c *gin.Context) {
	var req ConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision is required"})
		return
	}
	decision, err := consent.ParseDecision(req.Decision)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	reload := false
	gate := h.gate(h.scopes(c), consent.WithAcceptHook(func(context.Context) { reload = true }))

	if decision == consent.Accepted {
		err = gate.Accept(ctx)
	} else {
		err = gate.Decline(ctx, nil)
	}
	if err != nil {
		h.logger.Error("Failed to record consent",
			infralogger.String("decision", string(decision)),
			infralogger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record consent"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"decision": decision, "reload": reload})
}

var errUnknownLink = errors.New("unknown link")

// click records one activation of the link named by :linkID. The remote
// insert runs in the background; the local tally is always incremented.
func (h *Handler) click(c *gin.Context) (domain.Link, int, error) {
	link, ok := h.profile.FindLink(c.Param("linkID"))
	if !ok {
		return domain.Link{}, 0, errUnknownLink
	}

	ctx := c.Request.Context()
	s := h.scopes(c)

	var t tracking.Tracker = tracking.NewNop(s.Tally)
	if !middleware.IsBot(c) {
		var err error
		t, err = h.gate(s).Select(ctx, func() tracking.Tracker {
			return h.resume(ctx, c, s)
		})
		if err != nil {
			h.logger.Warn("Tracking not resumed", infralogger.Error(err))
		}
	}

	t.TrackLinkClick(ctx, link.ID)

	n, err := t.SaveLocalClickStats(ctx, link.ID)
	if err != nil {
		h.logger.Warn("Failed to save click tally",
			infralogger.String("link_id", link.ID),
			infralogger.Error(err),
		)
	}
	return link, n, nil
}

func (h *Handler) resume(ctx context.Context, c *gin.Context, s Scopes) tracking.Tracker {
	referrer, _, err := s.Session.Get(ctx, ReferrerKey)
	if err != nil {
		h.logger.Warn("Page referrer unavailable", infralogger.Error(err))
	}
	env := tracking.StaticEnvironment{RawReferrer: referrer, RawUA: c.Request.UserAgent()}
	return tracking.Resume(ctx, h.remote, env, h.trackingStores(s), h.logger, h.trackOpts...)
}

// Redirect records a click and redirects to the link.
func (h *Handler) Redirect(c *gin.Context) {
	link, _, err := h.click(c)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Redirect(http.StatusFound, link.URL)
}

// Click records a click made in-page and returns the new local count.
func (h *Handler) Click(c *gin.Context) {
	link, n, err := h.click(c)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ClickResponse{LinkID: link.ID, Clicks: n})
}
