package sqlite

// schema mirrors migrations/0001_init.up.sql, adapted to SQLite types:
// TIMESTAMPTZ becomes TEXT (RFC3339), BOOLEAN becomes INTEGER 0/1. Standalone
// mode runs a single replica against one file, so there is no
// golang-migrate step here — the schema is applied idempotently on open.
const schema = `
CREATE TABLE IF NOT EXISTS crosschat_channels (
    server_id    TEXT PRIMARY KEY,
    channel_id   TEXT NOT NULL,
    server_name  TEXT NOT NULL DEFAULT '',
    channel_name TEXT NOT NULL DEFAULT '',
    active       INTEGER NOT NULL DEFAULT 1,
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS banned_users (
    user_id      TEXT PRIMARY KEY,
    reason       TEXT NOT NULL DEFAULT '',
    moderator_id TEXT NOT NULL DEFAULT '',
    duration_seconds INTEGER,
    banned_at    TEXT NOT NULL,
    active       INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS banned_servers (
    server_id    TEXT PRIMARY KEY,
    reason       TEXT NOT NULL DEFAULT '',
    moderator_id TEXT NOT NULL DEFAULT '',
    banned_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS crosschat_messages (
    source_message_id TEXT PRIMARY KEY,
    cc_id              TEXT NOT NULL UNIQUE,
    source_user_id     TEXT NOT NULL,
    source_display_name TEXT NOT NULL DEFAULT '',
    source_server_id   TEXT NOT NULL,
    source_channel_id  TEXT NOT NULL,
    content            TEXT NOT NULL DEFAULT '',
    tag_level          INTEGER NOT NULL DEFAULT 0,
    tag_name           TEXT NOT NULL DEFAULT '',
    is_vip             INTEGER NOT NULL DEFAULT 0,
    created_at         TEXT NOT NULL,
    is_deleted         INTEGER NOT NULL DEFAULT 0,
    deleted_at         TEXT,
    deleted_by         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sent_messages (
    cc_id                TEXT NOT NULL,
    target_channel_id    TEXT NOT NULL,
    delivered_message_id TEXT NOT NULL,
    delivered_at         TEXT NOT NULL,
    source_message_id    TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (cc_id, target_channel_id)
);
CREATE INDEX IF NOT EXISTS sent_messages_cc_id_idx ON sent_messages (cc_id);

CREATE TABLE IF NOT EXISTS automod_whitelist (
    kind       TEXT NOT NULL,
    identifier TEXT NOT NULL,
    added_at   TEXT NOT NULL,
    added_by   TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (kind, identifier)
);

CREATE TABLE IF NOT EXISTS partner_servers (
    server_id     TEXT PRIMARY KEY,
    server_name   TEXT NOT NULL DEFAULT '',
    boost_delay_ms INTEGER NOT NULL DEFAULT 0,
    partnered_at  TEXT NOT NULL,
    partnered_by  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS moderation_logs (
    id           TEXT PRIMARY KEY,
    action       TEXT NOT NULL,
    target_id    TEXT NOT NULL DEFAULT '',
    moderator_id TEXT NOT NULL DEFAULT '',
    reason       TEXT NOT NULL DEFAULT '',
    detail       TEXT NOT NULL DEFAULT '',
    created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS moderation_logs_target_idx ON moderation_logs (target_id);

CREATE TABLE IF NOT EXISTS votes (
    user_id    TEXT NOT NULL,
    month      TEXT NOT NULL,
    count      INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (user_id, month)
);
`
