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

CREATE TABLE IF NOT EXISTS chat_messages (
	id         TEXT PRIMARY KEY,
	agent_id   TEXT NOT NULL CHECK(agent_id IN ('sofia', 'marcus', 'luna')),
	role       TEXT NOT NULL CHECK(role IN ('user', 'assistant')),
	content    TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_agent_seq ON chat_messages(agent_id, seq);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS profile (
	id           INTEGER PRIMARY KEY CHECK(id = 1),
	answers      TEXT NOT NULL DEFAULT '{}',
	completed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
