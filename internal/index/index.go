// Package index maintains the SQLite-backed search index for the vault:
// one scalar row per item, an FTS5 shadow table (behind the sqlite_fts5
// build tag, with a LIKE fallback otherwise), tag and relationship edges,
// per-type id sequences, and registry persistence. Every row is derived
// from the item files and rebuildable; the files stay the source of truth.
package index

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// meta keys.
const (
	metaSchemaVersion = "schema_version"
	metaNeedsRebuild  = "needs_rebuild"
)

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn  *sql.DB
	fresh bool
}

// Open opens (or creates) the SQLite database and applies the schema.
// A database without a stored schema version is treated as fresh; a
// version mismatch drops and recreates all tables and sets the
// needs-rebuild flag so the next Initialize replays the vault.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	db := &DB{conn: conn}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}

	stored, err := db.getMeta(metaSchemaVersion)
	if err != nil {
		conn.Close()
		return nil, err
	}
	switch stored {
	case schemaVersion:
	case "":
		db.fresh = true
		if err := db.setMeta(metaSchemaVersion, schemaVersion); err != nil {
			conn.Close()
			return nil, err
		}
	default:
		if _, err := conn.Exec(dropSchemaSQL); err != nil {
			conn.Close()
			return nil, fmt.Errorf("index: drop stale schema: %w", err)
		}
		if _, err := conn.Exec(coreSchemaSQL); err != nil {
			conn.Close()
			return nil, fmt.Errorf("index: recreate schema: %w", err)
		}
		if err := db.setMeta(metaSchemaVersion, schemaVersion); err != nil {
			conn.Close()
			return nil, err
		}
		if err := db.SetNeedsRebuild(true); err != nil {
			conn.Close()
			return nil, err
		}
	}

	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return db, nil
}

// Fresh reports whether Open created the database from scratch. The
// store uses it to decide whether a pre-existing vault needs a rebuild.
func (db *DB) Fresh() bool {
	return db.fresh
}

// NeedsRebuild reads the persisted rebuild flag.
func (db *DB) NeedsRebuild() (bool, error) {
	v, err := db.getMeta(metaNeedsRebuild)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// SetNeedsRebuild persists the rebuild flag. It is cleared only after a
// full rebuild pass completes, so an interrupted rebuild retries whole
// on the next startup.
func (db *DB) SetNeedsRebuild(v bool) error {
	s := "0"
	if v {
		s = "1"
	}
	return db.setMeta(metaNeedsRebuild, s)
}

func (db *DB) getMeta(key string) (string, error) {
	var v string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: read meta %s: %w", key, err)
	}
	return v, nil
}

func (db *DB) setMeta(key, value string) error {
	_, err := db.conn.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("index: write meta %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
