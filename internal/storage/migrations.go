package storage

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations must stay ordered; versions start at 1 and increase by one.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tenants (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id        TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	email     TEXT NOT NULL UNIQUE,
	name      TEXT NOT NULL DEFAULT '',
	role      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS targets (
	id        TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	kind      TEXT NOT NULL DEFAULT '',
	address   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS pentests (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	target_id   TEXT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'PLANNED',
	methodology TEXT NOT NULL DEFAULT '',
	start_date  DATETIME,
	end_date    DATETIME
);

CREATE TABLE IF NOT EXISTS findings (
	id                 TEXT PRIMARY KEY,
	tenant_id          TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	pentest_id         TEXT NOT NULL REFERENCES pentests(id) ON DELETE CASCADE,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	severity           TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'OPEN',
	category           TEXT NOT NULL DEFAULT '',
	cvss_score         REAL,
	proof_of_concept   TEXT NOT NULL DEFAULT '',
	reproduction_steps TEXT NOT NULL DEFAULT '',
	remediation        TEXT NOT NULL DEFAULT '',
	refs               TEXT NOT NULL DEFAULT '[]',
	reporter_id        TEXT REFERENCES users(id) ON DELETE SET NULL,
	assignee_id        TEXT REFERENCES users(id) ON DELETE SET NULL,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS comments (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	author_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	body        TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	pentest_id   TEXT NOT NULL REFERENCES pentests(id) ON DELETE CASCADE,
	title        TEXT NOT NULL,
	report_type  TEXT NOT NULL,
	format       TEXT NOT NULL,
	filename     TEXT NOT NULL,
	file_url     TEXT NOT NULL,
	file_size    INTEGER NOT NULL DEFAULT 0,
	generated_by TEXT NOT NULL,
	generated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	type       TEXT NOT NULL,
	title      TEXT NOT NULL,
	message    TEXT NOT NULL,
	link       TEXT,
	metadata   TEXT,
	read       INTEGER NOT NULL DEFAULT 0,
	read_at    DATETIME,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_tenant ON users(tenant_id, role);
CREATE INDEX IF NOT EXISTS idx_findings_pentest ON findings(pentest_id);
CREATE INDEX IF NOT EXISTS idx_comments_entity ON comments(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_notifications_user_read ON notifications(user_id, read);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
