package sqlite

import (
	"database/sql"
	"fmt"
)

// Schema DDL for all tables.
const (
	createSnippets = `CREATE TABLE IF NOT EXISTS snippets (
    snippet_id INTEGER PRIMARY KEY,
    description TEXT NOT NULL,
    language TEXT NOT NULL,
    code TEXT NOT NULL,
    tags TEXT NOT NULL,
    date_created TEXT NOT NULL,
    date_modified TEXT NOT NULL
);`

	createSnippetLanguages = `CREATE TABLE IF NOT EXISTS snippet_languages (
    language TEXT NOT NULL,
    snippet_id INTEGER NOT NULL,
    PRIMARY KEY (language, snippet_id),
    FOREIGN KEY (snippet_id) REFERENCES snippets(snippet_id)
);`

	createSnippetTags = `CREATE TABLE IF NOT EXISTS snippet_tags (
    tag TEXT NOT NULL,
    snippet_id INTEGER NOT NULL,
    PRIMARY KEY (tag, snippet_id),
    FOREIGN KEY (snippet_id) REFERENCES snippets(snippet_id)
);`

	createMeta = `CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	// sync_state has no foreign key: a row outlives its snippet as a tombstone.
	createSyncState = `CREATE TABLE IF NOT EXISTS sync_state (
    snippet_id INTEGER PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    synced_at TEXT NOT NULL
);`
)

// Index DDL. idx_snippets_date_modified is the by_date index.
const (
	idxSnippetsDateModified = `CREATE INDEX IF NOT EXISTS idx_snippets_date_modified ON snippets(date_modified, snippet_id);`
	idxSnippetLanguagesID   = `CREATE INDEX IF NOT EXISTS idx_snippet_languages_id ON snippet_languages(snippet_id);`
	idxSnippetTagsID        = `CREATE INDEX IF NOT EXISTS idx_snippet_tags_id ON snippet_tags(snippet_id);`
)

// Meta keys.
const (
	metaNextID          = "next_id"
	metaRemoteUpdatedAt = "remote_updated_at"
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createSnippets,
	createSnippetLanguages,
	createSnippetTags,
	createMeta,
	createSyncState,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxSnippetsDateModified,
	idxSnippetLanguagesID,
	idxSnippetTagsID,
}

// applySchema creates missing tables and seeds the id allocator.
func applySchema(db *sql.DB) error {
	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}
	for _, stmt := range indexDDL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	if _, err := db.Exec(
		"INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", metaNextID, "1",
	); err != nil {
		return fmt.Errorf("seeding allocator: %w", err)
	}
	return nil
}
