//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"strings"

	"github.com/starford/dagaz/internal/query"
)

// Without the sqlite_fts5 tag there is no shadow table; full-text search
// degrades to LIKE matching over the items columns, every parsed term
// ANDed, with a leading-text pseudo-snippet and no relevance score. The
// query grammar still applies, so invalid input fails identically.

func initFTS(_ *sql.DB) error {
	return nil
}

func ftsUpsert(_ *sql.Tx, _ ItemRow) error {
	return nil
}

func ftsDelete(_ *sql.Tx, _, _ string) {}

func likeConds(terms []string) (cond string, args []any) {
	var parts []string
	for _, term := range terms {
		parts = append(parts, "(i.title LIKE ? OR i.description LIKE ? OR i.content LIKE ? OR i.tags LIKE ?)")
		like := "%" + term + "%"
		args = append(args, like, like, like, like)
	}
	return "(" + strings.Join(parts, " AND ") + ")", args
}

func (db *DB) fullTextFragment(raw string) (join, cond, order string, args []any, err error) {
	expr, err := query.Parse(raw)
	if err != nil {
		return "", "", "", nil, err
	}
	cond, args = likeConds(query.Terms(expr))
	return "", cond, "i.updated_at DESC, i.type, i.id", args, nil
}

// SearchFTS is the LIKE-based stand-in for ranked search.
func (db *DB) SearchFTS(raw string, types []string, limit, offset int) ([]SearchHit, error) {
	expr, err := query.Parse(raw)
	if err != nil {
		return nil, err
	}
	cond, args := likeConds(query.Terms(expr))
	q := `SELECT i.type, i.id, i.title, substr(i.content, 1, 200) FROM items i WHERE ` + cond
	if len(types) > 0 {
		q += " AND i.type IN (" + placeholders(len(types)) + ")"
		for _, t := range types {
			args = append(args, t)
		}
	}
	q += " ORDER BY i.updated_at DESC, i.id LIMIT ? OFFSET ?"
	args = append(args, clampLimit(limit, defaultSearchLimit, maxSearchLimit), clampOffset(offset))

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.Type, &h.ID, &h.Title, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Suggest matches titles by prefix of the last term, LIKE-based.
func (db *DB) Suggest(raw string, types []string, limit int) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	expr, err := query.Parse(raw)
	if err != nil {
		return nil, err
	}
	var conds []string
	var args []any
	for _, term := range query.Terms(expr) {
		conds = append(conds, "i.title LIKE ?")
		args = append(args, "%"+term+"%")
	}
	q := `SELECT DISTINCT i.title FROM items i WHERE ` + strings.Join(conds, " AND ")
	if len(types) > 0 {
		q += " AND i.type IN (" + placeholders(len(types)) + ")"
		for _, t := range types {
			args = append(args, t)
		}
	}
	q += " ORDER BY i.title LIMIT ?"
	args = append(args, clampLimit(limit, defaultSuggestLimit, maxSuggestLimit))

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, err
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

// CountFTS counts LIKE matches.
func (db *DB) CountFTS(raw string, types []string) (int, error) {
	expr, err := query.Parse(raw)
	if err != nil {
		return 0, err
	}
	cond, args := likeConds(query.Terms(expr))
	q := `SELECT count(*) FROM items i WHERE ` + cond
	if len(types) > 0 {
		q += " AND i.type IN (" + placeholders(len(types)) + ")"
		for _, t := range types {
			args = append(args, t)
		}
	}
	var n int
	if err := db.conn.QueryRow(q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
