package domain_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jonesrussell/linkbio/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestTruncateUserAgent(t *testing.T) {
	t.Parallel()

	short := "Mozilla/5.0"
	assert.Equal(t, short, domain.TruncateUserAgent(short))

	long := strings.Repeat("a", 300)
	assert.Len(t, domain.TruncateUserAgent(long), domain.MaxUserAgentLength)

	multibyte := strings.Repeat("ü", 300)
	assert.Equal(t, domain.MaxUserAgentLength, utf8.RuneCountInString(domain.TruncateUserAgent(multibyte)))
}

func TestRecordColumnsMatchValues(t *testing.T) {
	t.Parallel()

	records := []domain.Record{
		domain.PageVisit{SessionID: "s", CreatedAt: time.Now()},
		domain.LinkClick{LinkID: "l", SessionID: "s", ClickedAt: time.Now()},
	}
	for _, r := range records {
		assert.Len(t, r.Values(), len(r.Columns()), r.Table())
	}
}

func TestNullableString(t *testing.T) {
	t.Parallel()

	assert.Nil(t, domain.NullableString(""))
	assert.Equal(t, "example.com", *domain.NullableString("example.com"))
}

func TestProfile_FindLink(t *testing.T) {
	t.Parallel()

	p := domain.Profile{Links: []domain.Link{{ID: "github", URL: "https://github.com/x"}}}

	l, ok := p.FindLink("github")
	assert.True(t, ok)
	assert.Equal(t, "https://github.com/x", l.URL)

	_, ok = p.FindLink("missing")
	assert.False(t, ok)
}
