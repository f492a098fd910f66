// Package litedb provides a lazy connection manager for SQLite database
// files: the connection is opened on first use, queries return all rows as
// column-name to value mappings, and the manager can be closed and reused.
package litedb

import (
	"database/sql"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Manager owns at most one live connection to a SQLite database file.
// A Manager is not safe for concurrent use; callers synchronize externally
// or use one manager per goroutine.
type Manager struct {
	path string
	db   *sql.DB
}

// New creates a manager for the database file at path. No connection is
// opened until Connect or Execute is called.
func New(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the database file path.
func (m *Manager) Path() string {
	return m.path
}

// Connect opens the database connection if one is not already held and
// returns it. Repeated calls without an intervening Close return the same
// handle. Returns a *ConnectionError if the file cannot be opened.
func (m *Manager) Connect() (*sql.DB, error) {
	if m.db != nil {
		return m.db, nil
	}

	db, err := sql.Open("sqlite", m.path)
	if err != nil {
		return nil, &ConnectionError{Path: m.path, Err: err}
	}

	// sql.Open does not touch the file; ping so an unopenable database
	// fails here rather than on the first query.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &ConnectionError{Path: m.path, Err: err}
	}

	// One live connection per manager.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	log.Debug().Str("path", m.path).Msg("Database connection established")

	m.db = db
	return m.db, nil
}

// Execute runs query with optional named parameters and returns all result
// rows. Parameter names are given without the ':' prefix; a nil or empty
// map runs the query unparameterized. Failures propagate to the caller as
// *ConnectionError or *QueryError; the held connection stays open either way.
func (m *Manager) Execute(query string, params map[string]any) ([]Row, error) {
	db, err := m.Connect()
	if err != nil {
		return nil, err
	}

	args := make([]any, 0, len(params))
	for name, value := range params {
		args = append(args, sql.Named(name, value))
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}

	var results []Row
	for rows.Next() {
		values := make([]any, len(columns))
		dests := make([]any, len(columns))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, &QueryError{Query: query, Err: err}
		}
		row := make(Row, len(columns))
		for i, name := range columns {
			row[name] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}

	return results, nil
}

// Close releases the held connection, if any. The handle reference is
// cleared first, so the manager reconnects on next use even if the
// underlying close reports an error. Safe to call repeatedly; a no-op on a
// manager that never connected.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}

	db := m.db
	m.db = nil

	log.Debug().Str("path", m.path).Msg("Database connection closed")

	return db.Close()
}
