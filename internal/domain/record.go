// Package domain holds the analytics records and landing page types shared by
// the tracker, the collector and the dashboard.
package domain

import (
	"time"
	"unicode/utf8"
)

// Remote table names.
const (
	TablePageVisits = "page_visits"
	TableLinkClicks = "link_clicks"
)

// MaxUserAgentLength is the stored user-agent limit in characters.
const MaxUserAgentLength = 255

// Record is a row destined for one of the remote analytics tables.
type Record interface {
	Table() string
	// Columns and Values are positionally aligned.
	Columns() []string
	Values() []any
}

// PageVisit is one landing page view.
type PageVisit struct {
	SessionID string    `db:"session_id" json:"session_id"`
	Referrer  *string   `db:"referrer"   json:"referrer"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Table implements Record.
func (PageVisit) Table() string { return TablePageVisits }

// Columns implements Record.
func (PageVisit) Columns() []string {
	return []string{"session_id", "referrer", "user_agent", "created_at"}
}

// Values implements Record.
func (v PageVisit) Values() []any {
	return []any{v.SessionID, v.Referrer, v.UserAgent, v.CreatedAt}
}

// LinkClick is one activation of a profile link.
type LinkClick struct {
	LinkID    string    `db:"link_id"    json:"link_id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Referrer  *string   `db:"referrer"   json:"referrer"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	ClickedAt time.Time `db:"clicked_at" json:"clicked_at"`
}

// Table implements Record.
func (LinkClick) Table() string { return TableLinkClicks }

// Columns implements Record.
func (LinkClick) Columns() []string {
	return []string{"link_id", "session_id", "referrer", "user_agent", "clicked_at"}
}

// Values implements Record.
func (c LinkClick) Values() []any {
	return []any{c.LinkID, c.SessionID, c.Referrer, c.UserAgent, c.ClickedAt}
}

// TruncateUserAgent cuts ua to MaxUserAgentLength characters.
func TruncateUserAgent(ua string) string {
	if utf8.RuneCountInString(ua) <= MaxUserAgentLength {
		return ua
	}
	runes := []rune(ua)
	return string(runes[:MaxUserAgentLength])
}

// NullableString maps "" to nil.
func NullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
