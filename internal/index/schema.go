package index

// schemaVersion is bumped whenever the table layout changes in a way a
// plain CREATE IF NOT EXISTS cannot absorb. A mismatch drops and
// recreates everything and flags a full rebuild from the vault.
const schemaVersion = "1"

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS items (
	type        TEXT NOT NULL,
	id          TEXT NOT NULL,
	path        TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	priority    TEXT NOT NULL DEFAULT 'medium',
	status_id   INTEGER NOT NULL DEFAULT 0,
	start_date  TEXT NOT NULL DEFAULT '',
	end_date    TEXT NOT NULL DEFAULT '',
	start_time  TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '[]',
	related     TEXT NOT NULL DEFAULT '[]',
	checksum    TEXT NOT NULL DEFAULT '',
	created_at  DATETIME,
	updated_at  DATETIME,
	PRIMARY KEY (type, id)
);

CREATE INDEX IF NOT EXISTS idx_items_status   ON items(status_id);
CREATE INDEX IF NOT EXISTS idx_items_priority ON items(priority);
CREATE INDEX IF NOT EXISTS idx_items_start    ON items(start_date);

CREATE TABLE IF NOT EXISTS tags (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS item_tags (
	item_type TEXT NOT NULL,
	item_id   TEXT NOT NULL,
	tag_id    INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	UNIQUE(item_type, item_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_item_tags_item ON item_tags(item_type, item_id);
CREATE INDEX IF NOT EXISTS idx_item_tags_tag  ON item_tags(tag_id);

CREATE TABLE IF NOT EXISTS relations (
	source_type TEXT NOT NULL,
	source_id   TEXT NOT NULL,
	target_type TEXT NOT NULL,
	target_id   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source_type, source_id);
CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(target_type, target_id);

CREATE TABLE IF NOT EXISTS statuses (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	name   TEXT NOT NULL UNIQUE,
	closed INTEGER NOT NULL DEFAULT 0,
	sort   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS types (
	name        TEXT PRIMARY KEY,
	base        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sequences (
	type TEXT PRIMARY KEY,
	seq  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const dropSchemaSQL = `
DROP TABLE IF EXISTS items;
DROP TABLE IF EXISTS tags;
DROP TABLE IF EXISTS item_tags;
DROP TABLE IF EXISTS relations;
DROP TABLE IF EXISTS statuses;
DROP TABLE IF EXISTS types;
DROP TABLE IF EXISTS sequences;
DROP TABLE IF EXISTS meta;
`
