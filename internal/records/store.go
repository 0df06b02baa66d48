// Package records resolves record identifiers found in call stacks to
// human-readable descriptions.
package records

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrStoreUnavailable is returned when no compiled store exists at a path.
var ErrStoreUnavailable = errors.New("record store unavailable")

// Store is a compiled, read-only record database. Implementations must be
// safe for concurrent lookups.
type Store interface {
	// Lookup returns the description of (formID, plugin). The plugin match
	// is case-insensitive.
	Lookup(ctx context.Context, formID, plugin string) (string, bool, error)
	Close() error
}

// Entry is one line of a record reference file.
type Entry struct {
	Plugin      string
	FormID      string
	Description string
}

// ParseEntry splits "plugin | formid | description". Extra fields are
// ignored.
func ParseEntry(line string) (Entry, bool) {
	parts := strings.Split(line, " | ")
	if len(parts) < 3 {
		return Entry{}, false
	}
	e := Entry{
		Plugin:      strings.TrimSpace(parts[0]),
		FormID:      strings.TrimSpace(parts[1]),
		Description: strings.TrimSpace(parts[2]),
	}
	if e.Plugin == "" || e.FormID == "" {
		return Entry{}, false
	}
	return e, true
}

// formIDKey normalizes a form identifier for comparison.
func formIDKey(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// OpenStore opens the compiled store at path, picking the driver from the
// file extension. ".duckdb" files are compiled stores; ".db" files are
// SQLite databases whose table is named after the game.
func OpenStore(path, table string) (Store, error) {
	if path == "" {
		return nil, ErrStoreUnavailable
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreUnavailable, path)
		}
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".duckdb":
		return OpenDuckStoreReadOnly(path)
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLiteStore(path, table)
	default:
		return nil, fmt.Errorf("unsupported record store format: %s", path)
	}
}
