package dashboard

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/jonesrussell/linkbio/internal/domain"
)

const (
	topReferrerLimit   = 10
	recentPerKindLimit = 10
	recentTotalLimit   = 20
	recentWindow       = 24 * time.Hour

	// UniqueSessionWindow is the fixed lookback of the unique session count.
	UniqueSessionWindow = 30 * 24 * time.Hour
)

// Activity kinds.
const (
	ActivityPageVisit = "page_visit"
	ActivityLinkClick = "link_click"
)

// Reader is the query surface the Service aggregates.
type Reader interface {
	CountVisits(ctx context.Context, since time.Time) (int, error)
	CountClicks(ctx context.Context, since time.Time) (int, error)
	CountUniqueSessions(ctx context.Context, since time.Time) (int, error)
	LinkStats(ctx context.Context, since time.Time) ([]LinkStat, error)
	TopReferrers(ctx context.Context, since time.Time, limit int) ([]ReferrerStat, error)
	RecentVisits(ctx context.Context, since time.Time, limit int) ([]domain.PageVisit, error)
	RecentClicks(ctx context.Context, since time.Time, limit int) ([]domain.LinkClick, error)
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Details string    `json:"details"`
}

// Stats is the dashboard payload.
type Stats struct {
	Days             int            `json:"days"`
	Since            time.Time      `json:"since"`
	GeneratedAt      time.Time      `json:"generated_at"`
	TotalVisits      int            `json:"total_visits"`
	TotalClicks      int            `json:"total_clicks"`
	ClickThroughRate float64        `json:"click_through_rate"`
	UniqueSessions   int            `json:"unique_sessions"`
	TodayVisits      int            `json:"today_visits"`
	Links            []LinkStat     `json:"links"`
	Referrers        []ReferrerStat `json:"referrers"`
	RecentActivity   []Activity     `json:"recent_activity"`
}

// Service aggregates dashboard statistics.
type Service struct {
	reader Reader
	now    func() time.Time
	loc    *time.Location
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLocation sets the time zone whose midnight starts "today".
// Defaults to time.Local.
func WithLocation(loc *time.Location) ServiceOption {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service.
func NewService(reader Reader, opts ...ServiceOption) *Service {
	s := &Service{reader: reader, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats aggregates the last days days. Unique sessions always cover
// UniqueSessionWindow, today's visits count from local midnight and recent
// activity covers the last 24 hours.
func (s *Service) Stats(ctx context.Context, days int) (*Stats, error) {
	now := s.now().UTC()
	since := now.AddDate(0, 0, -days)
	local := now.In(s.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc).UTC()

	st := &Stats{Days: days, Since: since, GeneratedAt: now}

	var err error
	if st.TotalVisits, err = s.reader.CountVisits(ctx, since); err != nil {
		return nil, err
	}
	if st.TotalClicks, err = s.reader.CountClicks(ctx, since); err != nil {
		return nil, err
	}
	if st.UniqueSessions, err = s.reader.CountUniqueSessions(ctx, now.Add(-UniqueSessionWindow)); err != nil {
		return nil, err
	}
	if st.TodayVisits, err = s.reader.CountVisits(ctx, midnight); err != nil {
		return nil, err
	}
	if st.Links, err = s.reader.LinkStats(ctx, since); err != nil {
		return nil, err
	}
	if st.Referrers, err = s.reader.TopReferrers(ctx, since, topReferrerLimit); err != nil {
		return nil, err
	}
	if st.RecentActivity, err = s.recentActivity(ctx, now.Add(-recentWindow)); err != nil {
		return nil, err
	}

	st.ClickThroughRate = ClickThroughRate(st.TotalClicks, st.TotalVisits)
	return st, nil
}

func (s *Service) recentActivity(ctx context.Context, since time.Time) ([]Activity, error) {
	visits, err := s.reader.RecentVisits(ctx, since, recentPerKindLimit)
	if err != nil {
		return nil, err
	}
	clicks, err := s.reader.RecentClicks(ctx, since, recentPerKindLimit)
	if err != nil {
		return nil, err
	}

	feed := make([]Activity, 0, len(visits)+len(clicks))
	for _, v := range visits {
		details := DirectReferrer
		if v.Referrer != nil && *v.Referrer != "" {
			details = *v.Referrer
		}
		feed = append(feed, Activity{Time: v.CreatedAt, Kind: ActivityPageVisit, Details: details})
	}
	for _, c := range clicks {
		feed = append(feed, Activity{Time: c.ClickedAt, Kind: ActivityLinkClick, Details: c.LinkID})
	}

	slices.SortStableFunc(feed, func(a, b Activity) int {
		return b.Time.Compare(a.Time)
	})
	if len(feed) > recentTotalLimit {
		feed = feed[:recentTotalLimit]
	}
	return feed, nil
}

// ClickThroughRate returns clicks per visit as a percentage with one
// decimal, 0 when there were no visits.
func ClickThroughRate(clicks, visits int) float64 {
	if visits == 0 {
		return 0
	}
	return math.Round(float64(clicks)/float64(visits)*1000) / 10
}
