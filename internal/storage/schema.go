package storage

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	created_at    TIMESTAMPTZ NOT NULL,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash BYTEA NOT NULL,
	version       INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS follows (
	follower_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	followee_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (follower_id, followee_id),
	CHECK (follower_id <> followee_id)
);

CREATE TABLE IF NOT EXISTS tasks (
	id          BIGSERIAL PRIMARY KEY,
	created_at  TIMESTAMPTZ NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	due         TIMESTAMPTZ NOT NULL,
	location    TEXT NOT NULL DEFAULT '',
	lat         DOUBLE PRECISION NOT NULL,
	lng         DOUBLE PRECISION NOT NULL,
	willpay     BOOLEAN NOT NULL DEFAULT FALSE,
	bounty      DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (bounty >= 0),
	completed   BOOLEAN NOT NULL DEFAULT FALSE,
	user_id     BIGINT NOT NULL REFERENCES users (id),
	version     INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS tasks_user_id_idx ON tasks (user_id);

CREATE TABLE IF NOT EXISTS helpers (
	id           BIGSERIAL PRIMARY KEY,
	created_at   TIMESTAMPTZ NOT NULL,
	task_id      BIGINT NOT NULL REFERENCES tasks (id),
	helper_id    BIGINT NOT NULL REFERENCES users (id),
	creator_id   BIGINT NOT NULL REFERENCES users (id),
	notified     BOOLEAN NOT NULL DEFAULT FALSE,
	accepted     BOOLEAN NOT NULL DEFAULT FALSE,
	completed    BOOLEAN NOT NULL DEFAULT FALSE,
	completed_on TIMESTAMPTZ,
	UNIQUE (task_id, helper_id)
);

CREATE TABLE IF NOT EXISTS comments (
	id         BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	content    TEXT NOT NULL,
	user_id    BIGINT NOT NULL REFERENCES users (id),
	task_id    BIGINT NOT NULL REFERENCES tasks (id)
);
CREATE INDEX IF NOT EXISTS comments_task_id_idx ON comments (task_id);

CREATE TABLE IF NOT EXISTS notifications (
	id         BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	user_id    BIGINT NOT NULL REFERENCES users (id),
	from_id    BIGINT NOT NULL REFERENCES users (id),
	kind       TEXT NOT NULL,
	ref        BIGINT NOT NULL DEFAULT 0,
	subject    TEXT NOT NULL DEFAULT '',
	read       BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS notifications_user_id_idx ON notifications (user_id);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at    DATETIME NOT NULL,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash BLOB NOT NULL,
	version       INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS follows (
	follower_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	followee_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	created_at  DATETIME NOT NULL,
	PRIMARY KEY (follower_id, followee_id),
	CHECK (follower_id <> followee_id)
);

CREATE TABLE IF NOT EXISTS tasks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at  DATETIME NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	due         DATETIME NOT NULL,
	location    TEXT NOT NULL DEFAULT '',
	lat         REAL NOT NULL,
	lng         REAL NOT NULL,
	willpay     BOOLEAN NOT NULL DEFAULT FALSE,
	bounty      REAL NOT NULL DEFAULT 0 CHECK (bounty >= 0),
	completed   BOOLEAN NOT NULL DEFAULT FALSE,
	user_id     INTEGER NOT NULL REFERENCES users (id),
	version     INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS tasks_user_id_idx ON tasks (user_id);

CREATE TABLE IF NOT EXISTS helpers (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at   DATETIME NOT NULL,
	task_id      INTEGER NOT NULL REFERENCES tasks (id),
	helper_id    INTEGER NOT NULL REFERENCES users (id),
	creator_id   INTEGER NOT NULL REFERENCES users (id),
	notified     BOOLEAN NOT NULL DEFAULT FALSE,
	accepted     BOOLEAN NOT NULL DEFAULT FALSE,
	completed    BOOLEAN NOT NULL DEFAULT FALSE,
	completed_on DATETIME,
	UNIQUE (task_id, helper_id)
);

CREATE TABLE IF NOT EXISTS comments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at DATETIME NOT NULL,
	content    TEXT NOT NULL,
	user_id    INTEGER NOT NULL REFERENCES users (id),
	task_id    INTEGER NOT NULL REFERENCES tasks (id)
);
CREATE INDEX IF NOT EXISTS comments_task_id_idx ON comments (task_id);

CREATE TABLE IF NOT EXISTS notifications (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at DATETIME NOT NULL,
	user_id    INTEGER NOT NULL REFERENCES users (id),
	from_id    INTEGER NOT NULL REFERENCES users (id),
	kind       TEXT NOT NULL,
	ref        INTEGER NOT NULL DEFAULT 0,
	subject    TEXT NOT NULL DEFAULT '',
	read       BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS notifications_user_id_idx ON notifications (user_id);
`

func schemaFor(driver string) string {
	if driver == "sqlite" {
		return sqliteSchema
	}
	return postgresSchema
}
