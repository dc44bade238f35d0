package sink_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonesrussell/linkbio/internal/domain"
	"github.com/jonesrussell/linkbio/internal/sink"
	infraerrors "github.com/jonesrussell/linkbio/infrastructure/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{sink.DriverREST, sink.DriverPostgres} {
		f, err := sink.Lookup(driver)
		require.NoError(t, err, driver)
		assert.NotNil(t, f)
	}

	_, err := sink.Lookup("firebase")
	require.ErrorIs(t, err, sink.ErrUnknownDriver)
}

func TestCheckConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		endpoint   string
		credential string
		wantErr    bool
	}{
		{"configured", "https://abc.supabase.co", "anon-key", false},
		{"empty endpoint", "", "anon-key", true},
		{"empty credential", "https://abc.supabase.co", "", true},
		{"placeholder endpoint", "SUPABASE_URL_PLACEHOLDER", "anon-key", true},
		{"placeholder credential", "https://abc.supabase.co", "SUPABASE_ANON_KEY_PLACEHOLDER", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := sink.CheckConfigured(tt.endpoint, tt.credential)
			if tt.wantErr {
				require.ErrorIs(t, err, sink.ErrNotConfigured)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestREST_Insert(t *testing.T) {
	t.Parallel()

	var (
		gotPath    string
		gotHeaders http.Header
		gotBody    map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	ins, err := sink.NewREST(srv.URL+"/", "anon-key")
	require.NoError(t, err)

	err = ins.Insert(context.Background(), domain.LinkClick{
		LinkID:    "github",
		SessionID: "sess-1",
		UserAgent: "Mozilla/5.0",
		ClickedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "/rest/v1/link_clicks", gotPath)
	assert.Equal(t, "anon-key", gotHeaders.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", gotHeaders.Get("Authorization"))
	assert.Equal(t, "return=minimal", gotHeaders.Get("Prefer"))
	assert.Equal(t, "github", gotBody["link_id"])
	assert.Nil(t, gotBody["referrer"])
}

func TestREST_InsertBackendError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid API key"}`))
	}))
	t.Cleanup(srv.Close)

	ins, err := sink.NewREST(srv.URL, "bad-key")
	require.NoError(t, err)

	err = ins.Insert(context.Background(), domain.PageVisit{SessionID: "s"})
	require.Error(t, err)

	code, ok := infraerrors.GetHTTPStatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestNewREST_RejectsBadEndpoint(t *testing.T) {
	t.Parallel()

	_, err := sink.NewREST("ftp://example.com", "k")
	require.Error(t, err)

	_, err = sink.NewREST("https://", "k")
	require.Error(t, err)
}

func TestNewPostgres_RejectsBadEndpoint(t *testing.T) {
	t.Parallel()

	_, err := sink.NewPostgres("https://example.com/db", "secret")
	require.Error(t, err)
}

func TestPostgres_Insert(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ref := "news.ycombinator.com"
	visit := domain.PageVisit{
		SessionID: "sess-1",
		Referrer:  &ref,
		UserAgent: "Mozilla/5.0",
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO page_visits \(session_id, referrer, user_agent, created_at\) VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs(visit.SessionID, visit.Referrer, visit.UserAgent, visit.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, sink.NewPostgresDB(db).Insert(context.Background(), visit))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec(`INSERT INTO link_clicks`).WillReturnError(errors.New("connection refused"))

	err = sink.NewPostgresDB(db).Insert(context.Background(), domain.LinkClick{LinkID: "x"})
	require.ErrorContains(t, err, "insert link_clicks")
}

func TestInsertStatement(t *testing.T) {
	t.Parallel()

	got := sink.InsertStatement("link_clicks", []string{"a", "b"}, 2)
	assert.Equal(t, "INSERT INTO link_clicks (a, b) VALUES ($1, $2), ($3, $4)", got)
}

func TestShared_BuildsOncePerTarget(t *testing.T) {
	t.Parallel()

	builds := 0
	lookup := sink.Shared(func(driver string) (sink.Factory, error) {
		if driver != sink.DriverREST {
			return nil, sink.ErrUnknownDriver
		}
		return func(endpoint, credential string) (sink.Inserter, error) {
			builds++
			return sink.NewREST(endpoint, credential)
		}, nil
	})

	factory, err := lookup(sink.DriverREST)
	require.NoError(t, err)

	a, err := factory("https://a.example.com", "key")
	require.NoError(t, err)
	b, err := factory("https://a.example.com", "key")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = factory("https://b.example.com", "key")
	require.NoError(t, err)
	assert.Equal(t, 2, builds)

	_, err = factory("ftp://bad", "key")
	require.Error(t, err)

	_, err = lookup("mysql")
	require.ErrorIs(t, err, sink.ErrUnknownDriver)
}
