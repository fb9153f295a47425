package index

import (
	"fmt"
	"strings"

	"github.com/starford/dagaz/internal/models"
)

// Search limits. The criteria query and the full-text service share the
// same clamp: limit in [1, maxSearchLimit], offset never negative.
const (
	defaultSearchLimit  = 20
	maxSearchLimit      = 1000
	defaultSuggestLimit = 10
	maxSuggestLimit     = 100
)

// ItemRef identifies one search hit. The index supplies identity and
// rank only; callers re-hydrate content from the item's file.
type ItemRef struct {
	Type string
	ID   string
}

// SearchHit is one ranked full-text match. Score is sign-normalized so
// higher is always better. Snippet carries literal <b>/</b> markers.
type SearchHit struct {
	Type    string  `json:"type"`
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// SearchItems runs one dynamic query over the items table combining the
// optional full-text predicate with type, tag, status, priority, and
// start-date filters. Multiple tags intersect: each adds its own join.
func (db *DB) SearchItems(c models.SearchCriteria) ([]ItemRef, error) {
	var (
		joins    []string
		joinArgs []any
		conds    []string
		condArgs []any
		order    = "i.updated_at DESC, i.type, i.id"
	)

	if strings.TrimSpace(c.Query) != "" {
		join, cond, ftsOrder, ftsArgs, err := db.fullTextFragment(c.Query)
		if err != nil {
			return nil, err
		}
		if join != "" {
			joins = append(joins, join)
		}
		conds = append(conds, cond)
		condArgs = append(condArgs, ftsArgs...)
		order = ftsOrder
	}

	// Tag joins carry their placeholder inside the ON clause, so their
	// args bind before any WHERE args.
	for n, tag := range c.Tags {
		it := fmt.Sprintf("it%d", n)
		tg := fmt.Sprintf("tg%d", n)
		joins = append(joins, fmt.Sprintf(
			"JOIN item_tags %s ON %s.item_type = i.type AND %s.item_id = i.id JOIN tags %s ON %s.id = %s.tag_id AND %s.name = ?",
			it, it, it, tg, tg, it, tg))
		joinArgs = append(joinArgs, tag)
	}

	if len(c.Types) > 0 {
		conds = append(conds, "i.type IN ("+placeholders(len(c.Types))+")")
		for _, t := range c.Types {
			condArgs = append(condArgs, t)
		}
	}

	switch {
	case c.Status != "":
		conds = append(conds, "i.status_id = (SELECT id FROM statuses WHERE name = ?)")
		condArgs = append(condArgs, c.Status)
	case !c.IncludeClosed:
		conds = append(conds, "i.status_id NOT IN (SELECT id FROM statuses WHERE closed = 1)")
	}

	if c.Priority != "" {
		conds = append(conds, "i.priority = ?")
		condArgs = append(condArgs, c.Priority)
	}
	if c.StartFrom != "" {
		conds = append(conds, "i.start_date >= ?")
		condArgs = append(condArgs, c.StartFrom)
	}
	if c.StartTo != "" {
		conds = append(conds, "i.start_date <> '' AND i.start_date <= ?")
		condArgs = append(condArgs, c.StartTo)
	}

	q := "SELECT i.type, i.id FROM items i"
	if len(joins) > 0 {
		q += " " + strings.Join(joins, " ")
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY " + order + " LIMIT ? OFFSET ?"

	args := append(joinArgs, condArgs...)
	args = append(args, clampLimit(c.Limit, defaultSearchLimit, maxSearchLimit), clampOffset(c.Offset))

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search items: %w", err)
	}
	defer rows.Close()

	var out []ItemRef
	for rows.Next() {
		var ref ItemRef
		if err := rows.Scan(&ref.Type, &ref.ID); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func clampLimit(limit, def, max int) int {
	switch {
	case limit <= 0:
		return def
	case limit > max:
		return max
	default:
		return limit
	}
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
