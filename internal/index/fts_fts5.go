//go:build sqlite_fts5

package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/dagaz/internal/query"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
			type,
			id UNINDEXED,
			title,
			description,
			content,
			tags,
			priority,
			status,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

// ftsUpsert keeps the shadow row in step with the scalar one. Scalar
// columns (type, priority, status) are indexed so the query grammar can
// scope on them; unscoped terms never reach them because Match restricts
// free words to the text column set.
func ftsUpsert(tx *sql.Tx, row ItemRow) error {
	var status string
	if row.StatusID != 0 {
		err := tx.QueryRow(`SELECT name FROM statuses WHERE id = ?`, row.StatusID).Scan(&status)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("index: fts status name: %w", err)
		}
	}
	_, _ = tx.Exec(`DELETE FROM items_fts WHERE type = ? AND id = ?`, row.Type, row.ID)
	_, err := tx.Exec(`
		INSERT INTO items_fts (type, id, title, description, content, tags, priority, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, row.Type, row.ID, row.Title, row.Description, row.Content,
		strings.Join(row.Tags, " "), row.Priority, status)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, typ, id string) {
	_, _ = tx.Exec(`DELETE FROM items_fts WHERE type = ? AND id = ?`, typ, id)
}

// fullTextFragment translates a raw query into the join/condition/order
// pieces SearchItems splices into its dynamic statement.
func (db *DB) fullTextFragment(raw string) (join, cond, order string, args []any, err error) {
	expr, err := query.Parse(raw)
	if err != nil {
		return "", "", "", nil, err
	}
	join = "JOIN items_fts fts ON fts.type = i.type AND fts.id = i.id"
	cond = "fts MATCH ?"
	order = "bm25(fts), i.id"
	args = []any{query.Match(expr)}
	return join, cond, order, args, nil
}

// SearchFTS runs a ranked full-text search. Snippets come from the
// content column: a 12-token window with literal <b>/</b> highlight
// markers and a ... ellipsis, preserved bit-exact for renderers.
func (db *DB) SearchFTS(raw string, types []string, limit, offset int) ([]SearchHit, error) {
	expr, err := query.Parse(raw)
	if err != nil {
		return nil, err
	}
	q := `
		SELECT fts.type, fts.id, fts.title,
		       snippet(fts, 4, '<b>', '</b>', '...', 12),
		       -bm25(fts)
		FROM items_fts fts
		WHERE fts MATCH ?`
	args := []any{query.Match(expr)}
	if len(types) > 0 {
		q += " AND fts.type IN (" + placeholders(len(types)) + ")"
		for _, t := range types {
			args = append(args, t)
		}
	}
	q += " ORDER BY bm25(fts), fts.id LIMIT ? OFFSET ?"
	args = append(args, clampLimit(limit, defaultSearchLimit, maxSearchLimit), clampOffset(offset))

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: fts search: %w", err)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.Type, &h.ID, &h.Title, &h.Snippet, &h.Score); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Suggest returns distinct titles ranked by relevance, matching the
// query with a prefix star on its last term. An empty query suggests
// nothing rather than erroring.
func (db *DB) Suggest(raw string, types []string, limit int) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	expr, err := query.Parse(raw)
	if err != nil {
		return nil, err
	}
	q := `SELECT fts.title FROM items_fts fts WHERE fts MATCH ?`
	args := []any{query.PrefixMatch(expr)}
	if len(types) > 0 {
		q += " AND fts.type IN (" + placeholders(len(types)) + ")"
		for _, t := range types {
			args = append(args, t)
		}
	}
	q += " GROUP BY fts.title ORDER BY min(bm25(fts)) LIMIT ?"
	args = append(args, clampLimit(limit, defaultSuggestLimit, maxSuggestLimit))

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: suggest: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		out = append(out, title)
	}
	return out, rows.Err()
}

// CountFTS returns the total match count for pagination metadata.
func (db *DB) CountFTS(raw string, types []string) (int, error) {
	expr, err := query.Parse(raw)
	if err != nil {
		return 0, err
	}
	q := `SELECT count(*) FROM items_fts fts WHERE fts MATCH ?`
	args := []any{query.Match(expr)}
	if len(types) > 0 {
		q += " AND fts.type IN (" + placeholders(len(types)) + ")"
		for _, t := range types {
			args = append(args, t)
		}
	}
	var n int
	if err := db.conn.QueryRow(q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: fts count: %w", err)
	}
	return n, nil
}
