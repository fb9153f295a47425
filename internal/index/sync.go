package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/dagaz/internal/checksum"
	"github.com/starford/dagaz/internal/codec"
	"github.com/starford/dagaz/internal/itemid"
)

// IndexFile is the one sync path every write shares: store writes,
// watcher events, and the rebuild all parse a vault file and replay it
// through UpsertItem. Identity comes from the path, the status id from
// the statuses table (falling back to the default status when the file
// names an unknown one).
func (db *DB) IndexFile(rel string, data []byte) error {
	typ, id, ok := itemid.FromPath(rel)
	if !ok {
		return fmt.Errorf("index: not an item path: %s", rel)
	}
	it, err := codec.Parse(data)
	if err != nil {
		return fmt.Errorf("index: parse %s: %w", rel, err)
	}

	statusID, err := db.resolveStatusID(it.Status)
	if err != nil {
		return err
	}

	return db.UpsertItem(ItemRow{
		Type:        typ,
		ID:          id,
		Path:        rel,
		Title:       it.Title,
		Description: it.Description,
		Content:     it.Content,
		Priority:    it.Priority,
		StatusID:    statusID,
		StartDate:   it.StartDate,
		EndDate:     it.EndDate,
		StartTime:   it.StartTime,
		Tags:        it.Tags,
		Related:     it.Related,
		Checksum:    checksum.Sum(data),
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	})
}

// resolveStatusID maps a status name to its id, or the default status
// (lowest seed order) when the name is empty or unknown.
func (db *DB) resolveStatusID(name string) (int64, error) {
	if name != "" {
		var id int64
		err := db.conn.QueryRow(`SELECT id FROM statuses WHERE name = ?`, name).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("index: resolve status: %w", err)
		}
	}
	var id int64
	err := db.conn.QueryRow(`SELECT id FROM statuses ORDER BY sort, id LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("index: default status: %w", err)
	}
	return id, nil
}
