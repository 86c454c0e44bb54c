package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	owner      TEXT PRIMARY KEY,
	subject    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversation_messages (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL REFERENCES conversations(owner),
	sender     TEXT NOT NULL,
	body       TEXT NOT NULL DEFAULT '',
	seq        INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (owner, seq)
);

CREATE TABLE IF NOT EXISTS deliveries (
	source_message_id TEXT PRIMARY KEY,
	thread_id         TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_owner_seq
	ON conversation_messages(owner, seq);
CREATE INDEX IF NOT EXISTS idx_messages_created_at
	ON conversation_messages(created_at);
CREATE INDEX IF NOT EXISTS idx_deliveries_status
	ON deliveries(status);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
