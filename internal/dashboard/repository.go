// Package dashboard serves the authenticated analytics dashboard API.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/linkbio/internal/domain"
	"github.com/jonesrussell/linkbio/infrastructure/retry"
)

// LinkStat is the click summary of one link.
type LinkStat struct {
	LinkID    string    `db:"link_id"    json:"link_id"`
	Clicks    int       `db:"clicks"     json:"clicks"`
	LastClick time.Time `db:"last_click" json:"last_click"`
}

// ReferrerStat counts visits from one referring host. Visits without a
// referrer are grouped under DirectReferrer.
type ReferrerStat struct {
	Referrer string `db:"referrer" json:"referrer"`
	Visits   int    `db:"visits"   json:"visits"`
}

// DirectReferrer labels visits without a referrer.
const DirectReferrer = "direct"

// Repository runs the read-only dashboard queries. Each query is retried on
// transient connection errors.
type Repository struct {
	db    *sqlx.DB
	retry retry.Config
}

// NewRepository creates a Repository.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, retry: retry.DefaultConfig()}
}

func (r *Repository) count(ctx context.Context, query string, args ...any) (int, error) {
	return retry.Do(ctx, r.retry, func() (int, error) {
		var n int
		if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
			return 0, err
		}
		return n, nil
	})
}

func selectAll[T any](ctx context.Context, r *Repository, query string, args ...any) ([]T, error) {
	return retry.Do(ctx, r.retry, func() ([]T, error) {
		rows := []T{}
		if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, err
		}
		return rows, nil
	})
}

// CountVisits counts page visits since.
func (r *Repository) CountVisits(ctx context.Context, since time.Time) (int, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM page_visits WHERE created_at >= $1`, since)
	if err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return n, nil
}

// CountClicks counts link clicks since.
func (r *Repository) CountClicks(ctx context.Context, since time.Time) (int, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM link_clicks WHERE clicked_at >= $1`, since)
	if err != nil {
		return 0, fmt.Errorf("count clicks: %w", err)
	}
	return n, nil
}

// CountUniqueSessions counts distinct visiting sessions since.
func (r *Repository) CountUniqueSessions(ctx context.Context, since time.Time) (int, error) {
	n, err := r.count(ctx, `SELECT COUNT(DISTINCT session_id) FROM page_visits WHERE created_at >= $1`, since)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// LinkStats returns clicks per link since, most clicked first.
func (r *Repository) LinkStats(ctx context.Context, since time.Time) ([]LinkStat, error) {
	stats, err := selectAll[LinkStat](ctx, r, `
		SELECT link_id, COUNT(*) AS clicks, MAX(clicked_at) AS last_click
		FROM link_clicks
		WHERE clicked_at >= $1
		GROUP BY link_id
		ORDER BY clicks DESC, link_id`, since)
	if err != nil {
		return nil, fmt.Errorf("link stats: %w", err)
	}
	return stats, nil
}

// TopReferrers returns the limit most frequent referrers since.
func (r *Repository) TopReferrers(ctx context.Context, since time.Time, limit int) ([]ReferrerStat, error) {
	stats, err := selectAll[ReferrerStat](ctx, r, `
		SELECT COALESCE(NULLIF(referrer, ''), '`+DirectReferrer+`') AS referrer, COUNT(*) AS visits
		FROM page_visits
		WHERE created_at >= $1
		GROUP BY 1
		ORDER BY visits DESC, referrer
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("top referrers: %w", err)
	}
	return stats, nil
}

// RecentVisits returns the newest limit visits since.
func (r *Repository) RecentVisits(ctx context.Context, since time.Time, limit int) ([]domain.PageVisit, error) {
	visits, err := selectAll[domain.PageVisit](ctx, r, `
		SELECT session_id, referrer, user_agent, created_at
		FROM page_visits
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent visits: %w", err)
	}
	return visits, nil
}

// RecentClicks returns the newest limit clicks since.
func (r *Repository) RecentClicks(ctx context.Context, since time.Time, limit int) ([]domain.LinkClick, error) {
	clicks, err := selectAll[domain.LinkClick](ctx, r, `
		SELECT link_id, session_id, referrer, user_agent, clicked_at
		FROM link_clicks
		WHERE clicked_at >= $1
		ORDER BY clicked_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent clicks: %w", err)
	}
	return clicks, nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
