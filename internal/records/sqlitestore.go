package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore reads a legacy FormID database: one table named after the
// game with plugin, formid and entry columns.
type SQLiteStore struct {
	db    *sql.DB
	query string
}

// OpenSQLiteStore opens path read-only.
func OpenSQLiteStore(path, table string) (*SQLiteStore, error) {
	if table == "" || strings.ContainsAny(table, "\"`;") {
		return nil, fmt.Errorf("invalid record table name %q", table)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening record database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening record database: %w", err)
	}

	return &SQLiteStore{
		db:    db,
		query: fmt.Sprintf(`SELECT entry FROM "%s" WHERE formid = ? AND plugin = ? COLLATE nocase LIMIT 1`, table),
	}, nil
}

// Lookup implements Store.
func (s *SQLiteStore) Lookup(ctx context.Context, formID, plugin string) (string, bool, error) {
	var entry sql.NullString
	err := s.db.QueryRowContext(ctx, s.query, formID, plugin).Scan(&entry)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("record lookup: %w", err)
	}
	return entry.String, true, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
