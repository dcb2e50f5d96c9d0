// Package sqlite implements the retention store on a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/issmimic/iss-telemetry/pkg/catalog"
	"github.com/issmimic/iss-telemetry/pkg/config"
	"github.com/issmimic/iss-telemetry/pkg/storage"
)

// schema is idempotent and safe to re-apply at any time, including from the
// self-healing path when the table is found missing mid-run.
const schema = `
CREATE TABLE IF NOT EXISTS samples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    ops_nom TEXT NOT NULL DEFAULT '',
    eng_nom TEXT NOT NULL DEFAULT '',
    units TEXT NOT NULL DEFAULT '',
    min_value TEXT NOT NULL DEFAULT '',
    max_value TEXT NOT NULL DEFAULT '',
    enum_values TEXT NOT NULL DEFAULT '',
    format_spec TEXT NOT NULL DEFAULT '',
    UNIQUE (key, timestamp)
);
CREATE INDEX IF NOT EXISTS idx_samples_key ON samples (key);
`

const sampleColumns = `key, value, timestamp, id,
       description, ops_nom, eng_nom, units, min_value, max_value, enum_values, format_spec`

// Store persists telemetry samples in a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path and ensures its schema exists.
// WAL journaling keeps readers from serializing behind the single writer.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure samples schema: %w", err)
	}
	return nil
}

// withHeal runs fn, and runs it once more after recreating the schema if the
// samples table has gone missing mid-run.
func (s *Store) withHeal(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !isMissingTable(err) {
		return err
	}
	log.Printf("Samples table missing, recreating schema: %v", err)
	if herr := s.ensureSchema(ctx); herr != nil {
		return herr
	}
	return fn()
}

// Insert persists one sample, then prunes the key back to the retention cap.
// A duplicate (key, timestamp) is a successful no-op.
func (s *Store) Insert(ctx context.Context, smp storage.Sample) (bool, error) {
	if smp.Key == "" {
		return false, fmt.Errorf("sample key is required")
	}

	var inserted bool
	err := s.withHeal(ctx, func() error {
		inserted = false
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO samples (
			   key, value, timestamp,
			   description, ops_nom, eng_nom, units,
			   min_value, max_value, enum_values, format_spec
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			smp.Key,
			smp.Value,
			smp.Timestamp,
			smp.Descriptor.Description,
			smp.Descriptor.OpsNom,
			smp.Descriptor.EngNom,
			smp.Descriptor.Units,
			smp.Descriptor.MinValue,
			smp.Descriptor.MaxValue,
			smp.Descriptor.EnumValues,
			smp.Descriptor.FormatSpec,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil
			}
			return fmt.Errorf("insert sample: %w", err)
		}
		inserted = true
		return nil
	})
	if err != nil || !inserted {
		return false, err
	}

	// A failed prune must never fail or roll back the insert it followed.
	if err := s.prune(ctx, smp.Key); err != nil {
		log.Printf("Prune failed for %s: %v", smp.Key, err)
	}
	return true, nil
}

// prune deletes the oldest excess rows for key so at most the retention cap
// remains. Kept rows are the first cap ordered by timestamp desc, id desc.
func (s *Store) prune(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM samples
		 WHERE key = ?
		   AND id NOT IN (
		       SELECT id FROM samples
		        WHERE key = ?
		        ORDER BY timestamp DESC, id DESC
		        LIMIT ?)`,
		key, key, config.RetentionCap,
	)
	return err
}

// GetAll returns every key's retained history, keys ascending, newest first.
func (s *Store) GetAll(ctx context.Context) ([]storage.KeySeries, error) {
	series := make([]storage.KeySeries, 0)
	err := s.withHeal(ctx, func() error {
		series = series[:0]
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+sampleColumns+`
			  FROM samples
			 ORDER BY key ASC, timestamp DESC, id DESC`)
		if err != nil {
			return fmt.Errorf("query all samples: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			key, val, desc, err := scanSample(rows)
			if err != nil {
				return fmt.Errorf("scan sample: %w", err)
			}
			if n := len(series); n == 0 || series[n-1].Key != key {
				// First row per key is its newest; its descriptor wins.
				series = append(series, storage.KeySeries{Key: key, Descriptor: desc})
			}
			last := &series[len(series)-1]
			last.Values = append(last.Values, val)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}

// GetByKey returns one key's retained history, newest first.
func (s *Store) GetByKey(ctx context.Context, key string) (storage.KeySeries, error) {
	var ks storage.KeySeries
	err := s.withHeal(ctx, func() error {
		ks = storage.KeySeries{Key: key}
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+sampleColumns+`
			  FROM samples
			 WHERE key = ?
			 ORDER BY timestamp DESC, id DESC`, key)
		if err != nil {
			return fmt.Errorf("query samples for %s: %w", key, err)
		}
		defer rows.Close()

		for rows.Next() {
			_, val, desc, err := scanSample(rows)
			if err != nil {
				return fmt.Errorf("scan sample: %w", err)
			}
			if len(ks.Values) == 0 {
				ks.Descriptor = desc
			}
			ks.Values = append(ks.Values, val)
		}
		return rows.Err()
	})
	if err != nil {
		return storage.KeySeries{}, err
	}
	if len(ks.Values) == 0 {
		return storage.KeySeries{}, storage.ErrNotFound
	}
	return ks, nil
}

// GetLatest returns the most recent observation per key.
func (s *Store) GetLatest(ctx context.Context) (map[string]storage.LatestValue, error) {
	latest := make(map[string]storage.LatestValue)
	err := s.withHeal(ctx, func() error {
		clear(latest)
		// (key, timestamp) is unique, so the join yields one row per key.
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+sampleColumns+`
			  FROM samples
			 WHERE (key, timestamp) IN (
			       SELECT key, MAX(timestamp) FROM samples GROUP BY key)`)
		if err != nil {
			return fmt.Errorf("query latest samples: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			key, val, desc, err := scanSample(rows)
			if err != nil {
				return fmt.Errorf("scan sample: %w", err)
			}
			latest[key] = storage.LatestValue{
				Value:      val.Value,
				Timestamp:  val.Timestamp,
				Descriptor: desc,
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

// ListKeys returns one entry per distinct key, keys ascending. The descriptor
// is taken from the key's most recent row.
func (s *Store) ListKeys(ctx context.Context) ([]storage.KeyInfo, error) {
	keys := make([]storage.KeyInfo, 0)
	err := s.withHeal(ctx, func() error {
		keys = keys[:0]
		rows, err := s.db.QueryContext(ctx, `
			SELECT key, description, ops_nom, eng_nom, units,
			       min_value, max_value, enum_values, format_spec
			  FROM samples
			 WHERE id IN (SELECT MAX(id) FROM samples GROUP BY key)
			 ORDER BY key ASC`)
		if err != nil {
			return fmt.Errorf("query keys: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var ki storage.KeyInfo
			if err := rows.Scan(
				&ki.Key,
				&ki.Descriptor.Description,
				&ki.Descriptor.OpsNom,
				&ki.Descriptor.EngNom,
				&ki.Descriptor.Units,
				&ki.Descriptor.MinValue,
				&ki.Descriptor.MaxValue,
				&ki.Descriptor.EnumValues,
				&ki.Descriptor.FormatSpec,
			); err != nil {
				return fmt.Errorf("scan key: %w", err)
			}
			keys = append(keys, ki)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func scanSample(rows *sql.Rows) (string, storage.Value, catalog.Descriptor, error) {
	var (
		key  string
		val  storage.Value
		desc catalog.Descriptor
	)
	err := rows.Scan(
		&key,
		&val.Value,
		&val.Timestamp,
		&val.ID,
		&desc.Description,
		&desc.OpsNom,
		&desc.EngNom,
		&desc.Units,
		&desc.MinValue,
		&desc.MaxValue,
		&desc.EnumValues,
		&desc.FormatSpec,
	)
	return key, val, desc, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isMissingTable(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "no such table")
}

var _ storage.Store = (*Store)(nil)
