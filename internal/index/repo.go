package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/dagaz/internal/itemid"
	"github.com/starford/dagaz/internal/models"
)

// ItemRow is the flattened projection of one item in the items table.
type ItemRow struct {
	Type        string
	ID          string
	Path        string
	Title       string
	Description string
	Content     string
	Priority    string
	StatusID    int64
	StartDate   string
	EndDate     string
	StartTime   string
	Tags        []string
	Related     []string
	Checksum    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UpsertItem replaces everything the index knows about one item inside a
// single transaction: the scalar row, the FTS shadow entry, all tag
// junction rows (tags auto-registered first), and all source-side
// relationship edges. Replace-all, not an incremental diff.
func (db *DB) UpsertItem(row ItemRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(nonNil(row.Tags))
	relatedJSON, _ := json.Marshal(nonNil(row.Related))

	_, err = tx.Exec(`
		INSERT INTO items (type, id, path, title, description, content, priority,
			status_id, start_date, end_date, start_time, tags, related,
			checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, id) DO UPDATE SET
			path        = excluded.path,
			title       = excluded.title,
			description = excluded.description,
			content     = excluded.content,
			priority    = excluded.priority,
			status_id   = excluded.status_id,
			start_date  = excluded.start_date,
			end_date    = excluded.end_date,
			start_time  = excluded.start_time,
			tags        = excluded.tags,
			related     = excluded.related,
			checksum    = excluded.checksum,
			created_at  = excluded.created_at,
			updated_at  = excluded.updated_at
	`, row.Type, row.ID, row.Path, row.Title, row.Description, row.Content, row.Priority,
		row.StatusID, row.StartDate, row.EndDate, row.StartTime, string(tagsJSON), string(relatedJSON),
		row.Checksum, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert item: %w", err)
	}

	// FTS shadow (no-op when the sqlite_fts5 tag is absent).
	if err := ftsUpsert(tx, row); err != nil {
		return err
	}

	// Replace tag junctions. Each tag is registered first so the
	// junction row never references a missing tag.
	_, _ = tx.Exec(`DELETE FROM item_tags WHERE item_type = ? AND item_id = ?`, row.Type, row.ID)
	if len(row.Tags) > 0 {
		ensure, err := tx.Prepare(`INSERT OR IGNORE INTO tags (name) VALUES (?)`)
		if err != nil {
			return fmt.Errorf("index: prepare tag insert: %w", err)
		}
		defer ensure.Close()
		link, err := tx.Prepare(`
			INSERT OR IGNORE INTO item_tags (item_type, item_id, tag_id)
			SELECT ?, ?, id FROM tags WHERE name = ?
		`)
		if err != nil {
			return fmt.Errorf("index: prepare tag link: %w", err)
		}
		defer link.Close()
		for _, tag := range row.Tags {
			if _, err := ensure.Exec(tag); err != nil {
				return fmt.Errorf("index: register tag: %w", err)
			}
			if _, err := link.Exec(row.Type, row.ID, tag); err != nil {
				return fmt.Errorf("index: link tag: %w", err)
			}
		}
	}

	// Replace source-side relationship edges.
	_, _ = tx.Exec(`DELETE FROM relations WHERE source_type = ? AND source_id = ?`, row.Type, row.ID)
	if len(row.Related) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO relations (source_type, source_id, target_type, target_id)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("index: prepare relation insert: %w", err)
		}
		defer stmt.Close()
		for _, ref := range row.Related {
			targetType, targetID, ok := itemid.ParseRef(ref)
			if !ok {
				continue
			}
			if _, err := stmt.Exec(row.Type, row.ID, targetType, targetID); err != nil {
				return fmt.Errorf("index: insert relation: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteItem removes an item's row, FTS entry, tag junctions, and
// source-side edges. Edges where the item is the target stay until
// their owning source is next synced.
func (db *DB) DeleteItem(typ, id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, typ, id)
	_, _ = tx.Exec(`DELETE FROM item_tags WHERE item_type = ? AND item_id = ?`, typ, id)
	_, _ = tx.Exec(`DELETE FROM relations WHERE source_type = ? AND source_id = ?`, typ, id)
	_, _ = tx.Exec(`DELETE FROM items WHERE type = ? AND id = ?`, typ, id)

	return tx.Commit()
}

// GetChecksum returns the stored checksum, or empty when not indexed.
func (db *DB) GetChecksum(typ, id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM items WHERE type = ? AND id = ?`, typ, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path-to-checksum for every indexed item.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM items`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// CountByType returns the number of indexed rows per type.
func (db *DB) CountByType() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT type, count(*) FROM items GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("index: count by type: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[t] = n
	}
	return out, rows.Err()
}

// NextSequence allocates the next id number for a type. One statement,
// one round trip: two interleaved allocations can never observe the
// same value.
func (db *DB) NextSequence(typ string) (int64, error) {
	var n int64
	err := db.conn.QueryRow(`
		INSERT INTO sequences (type, seq) VALUES (?, 1)
		ON CONFLICT(type) DO UPDATE SET seq = seq + 1
		RETURNING seq
	`, typ).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("index: next sequence for %s: %w", typ, err)
	}
	return n, nil
}

// ListTags returns every registered tag with its current usage count.
func (db *DB) ListTags() ([]models.TagCount, error) {
	rows, err := db.conn.Query(`
		SELECT t.name, count(it.tag_id)
		FROM tags t
		LEFT JOIN item_tags it ON it.tag_id = t.id
		GROUP BY t.id
		ORDER BY t.name
	`)
	if err != nil {
		return nil, fmt.Errorf("index: list tags: %w", err)
	}
	defer rows.Close()
	var out []models.TagCount
	for rows.Next() {
		var tc models.TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// DeleteTag removes a tag; its junction rows cascade away. Item files
// are never touched. Returns false when the tag did not exist.
func (db *DB) DeleteTag(name string) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM tags WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("index: delete tag: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Outgoing returns edges where the item is the source.
func (db *DB) Outgoing(typ, id string) ([]models.Edge, error) {
	return db.edges(`
		SELECT source_type, source_id, target_type, target_id
		FROM relations WHERE source_type = ? AND source_id = ?
		ORDER BY rowid
	`, typ, id)
}

// Incoming returns edges where the item is the target; this is the
// backlink view. Sources are not checked for liveness here.
func (db *DB) Incoming(typ, id string) ([]models.Edge, error) {
	return db.edges(`
		SELECT source_type, source_id, target_type, target_id
		FROM relations WHERE target_type = ? AND target_id = ?
		ORDER BY rowid
	`, typ, id)
}

func (db *DB) edges(q, typ, id string) ([]models.Edge, error) {
	rows, err := db.conn.Query(q, typ, id)
	if err != nil {
		return nil, fmt.Errorf("index: edges: %w", err)
	}
	defer rows.Close()
	var out []models.Edge
	for rows.Next() {
		var e models.Edge
		if err := rows.Scan(&e.SourceType, &e.SourceID, &e.TargetType, &e.TargetID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- registry persistence ---

// UpsertType inserts or replaces a type definition.
func (db *DB) UpsertType(def models.TypeDefinition) error {
	_, err := db.conn.Exec(`
		INSERT INTO types (name, base, description) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			base        = excluded.base,
			description = excluded.description
	`, def.Name, def.Base, def.Description)
	if err != nil {
		return fmt.Errorf("index: upsert type: %w", err)
	}
	return nil
}

// DeleteType removes a type definition. Returns false when absent.
func (db *DB) DeleteType(name string) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM types WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("index: delete type: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListTypes returns all type definitions ordered by name.
func (db *DB) ListTypes() ([]models.TypeDefinition, error) {
	rows, err := db.conn.Query(`SELECT name, base, description FROM types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("index: list types: %w", err)
	}
	defer rows.Close()
	var out []models.TypeDefinition
	for rows.Next() {
		var def models.TypeDefinition
		if err := rows.Scan(&def.Name, &def.Base, &def.Description); err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

// InsertStatus registers a workflow status if absent. sort fixes the
// seed order; the lowest sort is the default status.
func (db *DB) InsertStatus(name string, closed bool, sort int) error {
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO statuses (name, closed, sort) VALUES (?, ?, ?)
	`, name, closed, sort)
	if err != nil {
		return fmt.Errorf("index: insert status: %w", err)
	}
	return nil
}

// ListStatuses returns all statuses in seed order.
func (db *DB) ListStatuses() ([]models.Status, error) {
	rows, err := db.conn.Query(`SELECT id, name, closed FROM statuses ORDER BY sort, id`)
	if err != nil {
		return nil, fmt.Errorf("index: list statuses: %w", err)
	}
	defer rows.Close()
	var out []models.Status
	for rows.Next() {
		var s models.Status
		if err := rows.Scan(&s.ID, &s.Name, &s.Closed); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
