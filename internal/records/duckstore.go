package records

import (
	"bufio"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/sirupsen/logrus"
)

// DuckStore is a compiled record database in a DuckDB file.
type DuckStore struct {
	db         *sql.DB
	dbPath     string
	entryCount int
	batchSize  int
	batch      []Entry
	lastError  error
	log        logrus.FieldLogger
}

func newConnector(dsn string, strict bool, log logrus.FieldLogger) (*duckdb.Connector, error) {
	return duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				if strict {
					return err
				}
				// Non-fatal for readers
				log.WithError(err).Warn("pragma failed")
			}
		}
		return nil
	})
}

// NewDuckStoreAtPath creates an empty store at dbPath, ready for inserts.
func NewDuckStoreAtPath(dbPath string, log logrus.FieldLogger) (*DuckStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "duckstore")
	log.WithField("path", dbPath).Debug("creating record database")

	connector, err := newConnector(dbPath, true, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE records (
			id         INTEGER PRIMARY KEY,
			plugin     VARCHAR NOT NULL,
			plugin_key VARCHAR NOT NULL,
			formid     VARCHAR NOT NULL,
			entry      VARCHAR
		)
	`)
	if err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Indexes are created in Finalize once all rows are in.
	return &DuckStore{
		db:        db,
		dbPath:    dbPath,
		batchSize: 50000,
		batch:     make([]Entry, 0, 50000),
		log:       log,
	}, nil
}

// OpenDuckStoreReadOnly opens a compiled store for lookups.
func OpenDuckStoreReadOnly(dbPath string) (*DuckStore, error) {
	log := logrus.WithField("component", "duckstore")

	connector, err := newConnector(dbPath+"?access_mode=read_only", false, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	var entryCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM records").Scan(&entryCount); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to get entry count: %w", err)
	}

	log.WithFields(logrus.Fields{"path": dbPath, "entries": entryCount}).Debug("opened record database")

	return &DuckStore{
		db:         db,
		dbPath:     dbPath,
		entryCount: entryCount,
		batchSize:  50000,
		log:        log,
	}, nil
}

// AddEntry queues an entry. Entries are written in batches.
func (ds *DuckStore) AddEntry(e Entry) {
	ds.batch = append(ds.batch, e)
	ds.entryCount++

	if len(ds.batch) >= ds.batchSize {
		if err := ds.flushBatch(); err != nil {
			ds.lastError = err
			ds.log.WithError(err).Error("flush failed")
		}
	}
}

// LastError returns the last error that occurred during batch flush
func (ds *DuckStore) LastError() error {
	return ds.lastError
}

// flushBatch writes the current batch with the native Appender API.
func (ds *DuckStore) flushBatch() error {
	if len(ds.batch) == 0 {
		return nil
	}

	startTime := time.Now()

	conn, err := ds.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "records")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		baseID := ds.entryCount - len(ds.batch)
		for i, e := range ds.batch {
			err := appender.AppendRow(
				int32(baseID+i),
				e.Plugin,
				strings.ToLower(e.Plugin),
				formIDKey(e.FormID),
				e.Description,
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}

		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	ds.log.WithFields(logrus.Fields{
		"rows":    len(ds.batch),
		"elapsed": time.Since(startTime),
	}).Debug("batch flushed")

	ds.batch = ds.batch[:0]
	return nil
}

// Finalize flushes remaining entries and builds the lookup index.
func (ds *DuckStore) Finalize() error {
	if err := ds.flushBatch(); err != nil {
		return err
	}
	if ds.lastError != nil {
		return ds.lastError
	}

	if _, err := ds.db.Exec("CREATE INDEX idx_records_lookup ON records(plugin_key)"); err != nil {
		return fmt.Errorf("idx_records_lookup creation failed: %w", err)
	}
	return nil
}

// Len returns the number of entries.
func (ds *DuckStore) Len() int {
	return ds.entryCount
}

// Lookup implements Store. Like the reference files, a row matches when its
// identifier contains formID; the earliest row wins.
func (ds *DuckStore) Lookup(ctx context.Context, formID, plugin string) (string, bool, error) {
	var entry sql.NullString
	err := ds.db.QueryRowContext(ctx,
		"SELECT entry FROM records WHERE plugin_key = ? AND contains(formid, ?) ORDER BY id LIMIT 1",
		strings.ToLower(plugin), formIDKey(formID),
	).Scan(&entry)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("record lookup: %w", err)
	}
	return entry.String, true, nil
}

// Close closes the database.
func (ds *DuckStore) Close() error {
	if ds.db == nil {
		return nil
	}
	return ds.db.Close()
}

// CompileDuckStore builds a compiled store at dst from a reference file of
// "plugin | formid | description" lines. An existing store at dst is
// replaced. It returns the number of entries written.
func CompileDuckStore(src, dst string, log logrus.FieldLogger) (int, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening reference file: %w", err)
	}
	defer in.Close()

	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("removing old store: %w", err)
	}

	store, err := NewDuckStoreAtPath(dst, log)
	if err != nil {
		return 0, err
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if e, ok := ParseEntry(scanner.Text()); ok {
			store.AddEntry(e)
		}
	}
	if err := scanner.Err(); err != nil {
		store.Close()
		os.Remove(dst)
		return 0, fmt.Errorf("reading reference file: %w", err)
	}

	if err := store.Finalize(); err != nil {
		store.Close()
		os.Remove(dst)
		return 0, err
	}

	count := store.Len()
	if err := store.Close(); err != nil {
		return count, err
	}
	return count, nil
}
