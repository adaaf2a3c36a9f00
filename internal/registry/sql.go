package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLRegistry lists hosts from the web application's database. The query
// must return id, name, address and mac columns in that order; address and
// mac may be NULL.
type SQLRegistry struct {
	db    *sql.DB
	query string
}

// OpenSQL opens a sqlite (modernc, pure Go) or postgres (lib/pq) database.
func OpenSQL(driver, dsn, query string) (*SQLRegistry, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s registry: %w", driver, err)
	}
	return NewSQLRegistry(db, query), nil
}

func NewSQLRegistry(db *sql.DB, query string) *SQLRegistry {
	return &SQLRegistry{db: db, query: query}
}

func (r *SQLRegistry) Hosts(ctx context.Context) ([]Host, error) {
	rows, err := r.db.QueryContext(ctx, r.query)
	if err != nil {
		return nil, fmt.Errorf("query hosts: %w", err)
	}
	defer rows.Close()

	var hosts []Host
	for rows.Next() {
		var (
			id      string
			name    sql.NullString
			address sql.NullString
			mac     sql.NullString
		)
		if err := rows.Scan(&id, &name, &address, &mac); err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		hosts = append(hosts, Host{
			ID:      strings.TrimSpace(id),
			Name:    name.String,
			Address: strings.TrimSpace(address.String),
			MAC:     mac.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hosts: %w", err)
	}
	return hosts, nil
}

func (r *SQLRegistry) Close() error {
	return r.db.Close()
}
