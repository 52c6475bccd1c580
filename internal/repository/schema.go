package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema создает таблицы движка. Все дочерние таблицы удаляются каскадно вместе с родителем.
const Schema = `
CREATE TABLE IF NOT EXISTS threads (
	id          BIGSERIAL PRIMARY KEY,
	type        VARCHAR(32)  NOT NULL,
	name        VARCHAR(255),
	hash        VARCHAR(64)  UNIQUE,
	metadata    JSONB,
	is_locked   BOOLEAN      NOT NULL DEFAULT FALSE,
	permissions JSONB,
	created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_threads_type ON threads (type);

CREATE TABLE IF NOT EXISTS thread_participants (
	id            BIGSERIAL PRIMARY KEY,
	thread_id     BIGINT       NOT NULL REFERENCES threads (id) ON DELETE CASCADE,
	actor_type    VARCHAR(64)  NOT NULL,
	actor_id      VARCHAR(255) NOT NULL,
	role          VARCHAR(16)  NOT NULL DEFAULT 'member',
	joined_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
	left_at       TIMESTAMPTZ,
	chat_lock_pin VARCHAR(255),
	public_key    TEXT,
	security_code VARCHAR(64),
	UNIQUE (thread_id, actor_type, actor_id)
);
CREATE INDEX IF NOT EXISTS idx_thread_participants_actor ON thread_participants (actor_type, actor_id);

CREATE TABLE IF NOT EXISTS messages (
	id                BIGSERIAL PRIMARY KEY,
	thread_id         BIGINT       NOT NULL REFERENCES threads (id) ON DELETE CASCADE,
	sender_type       VARCHAR(64)  NOT NULL,
	sender_id         VARCHAR(255) NOT NULL,
	author_type       VARCHAR(64),
	author_id         VARCHAR(255),
	type              VARCHAR(32)  NOT NULL,
	payload           JSONB        NOT NULL,
	encrypted         BOOLEAN      NOT NULL DEFAULT FALSE,
	encryption_driver VARCHAR(64),
	deleted_at        TIMESTAMPTZ,
	deleted_by_type   VARCHAR(64),
	deleted_by_id     VARCHAR(255),
	created_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages (thread_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_messages_deleted_at ON messages (deleted_at) WHERE deleted_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS message_versions (
	id                BIGSERIAL PRIMARY KEY,
	message_id        BIGINT       NOT NULL REFERENCES messages (id) ON DELETE CASCADE,
	payload           JSONB        NOT NULL,
	encrypted         BOOLEAN      NOT NULL DEFAULT FALSE,
	encryption_driver VARCHAR(64),
	edited_by_type    VARCHAR(64)  NOT NULL,
	edited_by_id      VARCHAR(255) NOT NULL,
	created_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_message_versions_message ON message_versions (message_id, created_at);

CREATE TABLE IF NOT EXISTS message_deliveries (
	message_id   BIGINT       NOT NULL REFERENCES messages (id) ON DELETE CASCADE,
	actor_type   VARCHAR(64)  NOT NULL,
	actor_id     VARCHAR(255) NOT NULL,
	delivered_at TIMESTAMPTZ,
	read_at      TIMESTAMPTZ,
	PRIMARY KEY (message_id, actor_type, actor_id)
);
CREATE INDEX IF NOT EXISTS idx_message_deliveries_actor ON message_deliveries (actor_type, actor_id);

CREATE TABLE IF NOT EXISTS message_deletions (
	message_id BIGINT       NOT NULL REFERENCES messages (id) ON DELETE CASCADE,
	actor_type VARCHAR(64)  NOT NULL,
	actor_id   VARCHAR(255) NOT NULL,
	deleted_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
	PRIMARY KEY (message_id, actor_type, actor_id)
);

CREATE TABLE IF NOT EXISTS message_attachments (
	id             BIGSERIAL PRIMARY KEY,
	message_id     BIGINT       NOT NULL REFERENCES messages (id) ON DELETE CASCADE,
	type           VARCHAR(16)  NOT NULL,
	disk           VARCHAR(64)  NOT NULL,
	path           VARCHAR(1024) NOT NULL,
	filename       VARCHAR(255),
	mime_type      VARCHAR(255),
	size           BIGINT       NOT NULL DEFAULT 0,
	duration       INTEGER,
	width          INTEGER,
	height         INTEGER,
	thumbnail_path VARCHAR(1024),
	blurhash       VARCHAR(255),
	caption        TEXT,
	view_once      BOOLEAN      NOT NULL DEFAULT FALSE,
	viewed_at      TIMESTAMPTZ,
	metadata       JSONB,
	position       INTEGER      NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_message_attachments_message ON message_attachments (message_id, position);

CREATE TABLE IF NOT EXISTS message_reactions (
	message_id BIGINT       NOT NULL REFERENCES messages (id) ON DELETE CASCADE,
	actor_type VARCHAR(64)  NOT NULL,
	actor_id   VARCHAR(255) NOT NULL,
	reaction   VARCHAR(64)  NOT NULL,
	created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
	PRIMARY KEY (message_id, actor_type, actor_id)
);
CREATE INDEX IF NOT EXISTS idx_message_reactions_actor ON message_reactions (actor_type, actor_id);

CREATE TABLE IF NOT EXISTS bookmark_collections (
	id         BIGSERIAL PRIMARY KEY,
	owner_type VARCHAR(64)  NOT NULL,
	owner_id   VARCHAR(255) NOT NULL,
	name       VARCHAR(255) NOT NULL,
	created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_bookmark_collections_owner ON bookmark_collections (owner_type, owner_id);

CREATE TABLE IF NOT EXISTS message_bookmarks (
	message_id    BIGINT       NOT NULL REFERENCES messages (id) ON DELETE CASCADE,
	actor_type    VARCHAR(64)  NOT NULL,
	actor_id      VARCHAR(255) NOT NULL,
	collection_id BIGINT       REFERENCES bookmark_collections (id) ON DELETE SET NULL,
	metadata      JSONB,
	created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
	PRIMARY KEY (message_id, actor_type, actor_id)
);
CREATE INDEX IF NOT EXISTS idx_message_bookmarks_actor ON message_bookmarks (actor_type, actor_id, created_at DESC);

CREATE TABLE IF NOT EXISTS audit_log (
	id          BIGSERIAL PRIMARY KEY,
	event_id    UUID         NOT NULL,
	event_time  TIMESTAMPTZ  NOT NULL,
	actor_type  VARCHAR(64),
	actor_id    VARCHAR(255),
	thread_id   BIGINT,
	message_id  BIGINT,
	event_type  VARCHAR(64)  NOT NULL,
	payload     JSONB
);
CREATE INDEX IF NOT EXISTS idx_audit_log_thread ON audit_log (thread_id, event_time);
`

// Migrate применяет Schema. Операция идемпотентна.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
