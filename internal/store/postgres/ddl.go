package postgres

import (
	"database/sql"
	"fmt"
	"strings"
)

// ddl mirrors the sqlite schema with native postgres types. All statements
// are idempotent (IF NOT EXISTS) so EnsureSchema is safe on every start.
const ddl = `
CREATE TABLE IF NOT EXISTS users (
    user_id       TEXT PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    creation_time TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS characters (
    character_id  TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    path          TEXT NOT NULL UNIQUE,
    personality   TEXT NOT NULL DEFAULT '',
    appearance    TEXT NOT NULL DEFAULT '',
    scenario      TEXT NOT NULL DEFAULT '',
    img_gen       BOOLEAN NOT NULL DEFAULT FALSE,
    image_model   TEXT NOT NULL DEFAULT '',
    creation_time TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS threads (
    thread_id     TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL REFERENCES users(user_id),
    character_id  TEXT NOT NULL REFERENCES characters(character_id),
    creation_time TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_threads_user ON threads(user_id);
CREATE INDEX IF NOT EXISTS idx_threads_user_character ON threads(user_id, character_id);

CREATE TABLE IF NOT EXISTS messages (
    message_id TEXT PRIMARY KEY,
    thread_id  TEXT NOT NULL REFERENCES threads(thread_id),
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    ts         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_thread_ts ON messages(thread_id, ts);

CREATE TABLE IF NOT EXISTS events (
    event_id     TEXT PRIMARY KEY,
    character_id TEXT NOT NULL REFERENCES characters(character_id),
    kind         TEXT NOT NULL,
    content      TEXT NOT NULL,
    ts           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_character_ts ON events(character_id, ts);

CREATE TABLE IF NOT EXISTS posts (
    post_id      TEXT PRIMARY KEY,
    character_id TEXT NOT NULL REFERENCES characters(character_id),
    description  TEXT NOT NULL,
    image_post   BOOLEAN NOT NULL DEFAULT FALSE,
    prompt       TEXT NOT NULL DEFAULT '',
    caption      TEXT NOT NULL DEFAULT '',
    image_path   TEXT,
    ts           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_character_ts ON posts(character_id, ts);

CREATE TABLE IF NOT EXISTS comments (
    comment_id TEXT PRIMARY KEY,
    post_id    TEXT NOT NULL REFERENCES posts(post_id),
    user_id    TEXT NOT NULL REFERENCES users(user_id),
    content    TEXT NOT NULL,
    ts         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);

CREATE TABLE IF NOT EXISTS likes (
    like_id TEXT PRIMARY KEY,
    post_id TEXT NOT NULL REFERENCES posts(post_id),
    user_id TEXT NOT NULL REFERENCES users(user_id),
    ts      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_likes_post ON likes(post_id);
`

// EnsureSchema applies the DDL statement by statement; the pgx extended
// protocol rejects multi-statement strings.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
