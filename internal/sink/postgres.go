package sink

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonesrussell/linkbio/internal/domain"

	_ "github.com/lib/pq"
)

// Postgres inserts rows directly with lib/pq.
type Postgres struct {
	db *sql.DB
}

// NewPostgres is the Factory of the postgres driver. endpoint is a
// postgres:// URL without a password; credential is the password.
func NewPostgres(endpoint, credential string) (Inserter, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, fmt.Errorf("endpoint %q: scheme must be postgres", endpoint)
	}

	user := "postgres"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, credential)

	db, err := sql.Open("postgres", u.String())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return NewPostgresDB(db), nil
}

// NewPostgresDB wraps an open handle.
func NewPostgresDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Insert implements Inserter.
func (p *Postgres) Insert(ctx context.Context, rec domain.Record) error {
	if _, err := p.db.ExecContext(ctx, InsertStatement(rec.Table(), rec.Columns(), 1), rec.Values()...); err != nil {
		return fmt.Errorf("insert %s: %w", rec.Table(), err)
	}
	return nil
}

// Close closes the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// InsertStatement builds a multi-row INSERT with $n placeholders for rows
// value tuples of len(columns) each.
func InsertStatement(table string, columns []string, rows int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))
	for row := range rows {
		if row > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for col := range columns {
			if col > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", row*len(columns)+col+1)
		}
		sb.WriteByte(')')
	}
	return sb.String()
}
