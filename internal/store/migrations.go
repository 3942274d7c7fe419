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

CREATE TABLE IF NOT EXISTS users (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	username       TEXT NOT NULL UNIQUE,
	email          TEXT NOT NULL UNIQUE,
	password_hash  TEXT NOT NULL,
	email_verified INTEGER NOT NULL DEFAULT 0,
	email_verification_token TEXT,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	user_id      INTEGER NOT NULL,
	id           TEXT NOT NULL,
	text         TEXT NOT NULL,
	completed    INTEGER NOT NULL DEFAULT 0,
	category     TEXT NOT NULL DEFAULT 'general',
	priority     TEXT NOT NULL DEFAULT 'medium',
	due_date     DATETIME,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME,
	completed_at DATETIME,
	PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS idx_tasks_user_created ON tasks(user_id, created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS password_resets (
	email      TEXT PRIMARY KEY,
	reset_code TEXT NOT NULL,
	expires_at DATETIME NOT NULL,
	used       INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		version: 3,
		sql: `
ALTER TABLE users ADD COLUMN email_verification_code TEXT;

CREATE INDEX IF NOT EXISTS idx_users_verification_token ON users(email_verification_token);

INSERT INTO schema_version (version) VALUES (3);
`,
	},
}
