package store

type migration struct {
	Version int
	Name    string
	SQL     string
}

// Channels and rules are stored as one JSON record per row so that a single
// unreadable record can be skipped without failing the whole list.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create channels and keyword configs",
		SQL: `
			CREATE TABLE channels (
				id         TEXT PRIMARY KEY,
				position   INTEGER NOT NULL,
				record     TEXT NOT NULL,
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			);
			CREATE INDEX idx_channels_position ON channels (position);

			CREATE TABLE keyword_configs (
				id         TEXT PRIMARY KEY,
				position   INTEGER NOT NULL,
				record     TEXT NOT NULL,
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			);
			CREATE INDEX idx_keyword_configs_position ON keyword_configs (position);
		`,
	},
	{
		Version: 2,
		Name:    "create outcome log",
		SQL: `
			CREATE TABLE outcome_log (
				id    INTEGER PRIMARY KEY AUTOINCREMENT,
				entry TEXT NOT NULL
			);
		`,
	},
}
