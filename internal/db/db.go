package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return database, nil
}

func runMigrations(database *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            username TEXT NOT NULL,
            phone TEXT NOT NULL DEFAULT '',
            is_online BOOLEAN NOT NULL DEFAULT FALSE,
            last_online TIMESTAMPTZ
        );`,
		`CREATE TABLE IF NOT EXISTS events (
            id BIGSERIAL PRIMARY KEY,
            title TEXT NOT NULL,
            description TEXT,
            cover_url TEXT,
            starts_at TIMESTAMPTZ,
            ends_at TIMESTAMPTZ,
            author_id BIGINT NOT NULL REFERENCES users(id),
            chat_id BIGINT
        );`,
		`CREATE TABLE IF NOT EXISTS invites (
            id BIGSERIAL PRIMARY KEY,
            event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            status TEXT NOT NULL DEFAULT 'Pending',
            user_permission TEXT NOT NULL DEFAULT 'Participant'
        );`,
		`CREATE TABLE IF NOT EXISTS chats (
            id BIGSERIAL PRIMARY KEY,
            chat_type TEXT NOT NULL,
            title TEXT,
            description TEXT,
            cover_url TEXT,
            event_id BIGINT REFERENCES events(id),
            last_message_id BIGINT,
            pinned_message_id BIGINT,
            created_by BIGINT REFERENCES users(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            deleted_at TIMESTAMPTZ
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            id BIGSERIAL PRIMARY KEY,
            chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            role TEXT NOT NULL DEFAULT 'Participant',
            status TEXT NOT NULL DEFAULT 'Active',
            last_message_id BIGINT,
            last_read_at TIMESTAMPTZ,
            muted_at TIMESTAMPTZ,
            archived_at TIMESTAMPTZ,
            pinned_at TIMESTAMPTZ,
            truncated_at TIMESTAMPTZ,
            kicked_at TIMESTAMPTZ,
            left_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(chat_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS contact_attachments (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT REFERENCES users(id),
            name TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            deleted_at TIMESTAMPTZ
        );`,
		`CREATE TABLE IF NOT EXISTS event_attachments (
            id BIGSERIAL PRIMARY KEY,
            event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
            deleted_at TIMESTAMPTZ
        );`,
		`CREATE TABLE IF NOT EXISTS location_attachments (
            id BIGSERIAL PRIMARY KEY,
            latitude DOUBLE PRECISION,
            longitude DOUBLE PRECISION,
            address TEXT NOT NULL DEFAULT '',
            deleted_at TIMESTAMPTZ
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            uuid TEXT NOT NULL,
            chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id BIGINT REFERENCES members(id),
            type TEXT NOT NULL DEFAULT 'regular',
            text TEXT,
            contact_attachment_id BIGINT REFERENCES contact_attachments(id),
            event_attachment_id BIGINT REFERENCES event_attachments(id),
            location_attachment_id BIGINT REFERENCES location_attachments(id),
            replay_to_id BIGINT REFERENCES messages(id),
            pinned_at TIMESTAMPTZ,
            pinned_by BIGINT REFERENCES members(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            deleted_at TIMESTAMPTZ
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages(chat_id, created_at DESC);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_chat_uuid ON messages(chat_id, uuid);`,
		`CREATE TABLE IF NOT EXISTS deleted_messages (
            id BIGSERIAL PRIMARY KEY,
            message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
            deleted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(message_id, member_id)
        );`,
		`CREATE TABLE IF NOT EXISTS system_message_actions (
            id BIGSERIAL PRIMARY KEY,
            message_id BIGINT NOT NULL UNIQUE REFERENCES messages(id) ON DELETE CASCADE,
            action_type TEXT NOT NULL,
            target_member_id BIGINT REFERENCES members(id),
            target_message_id BIGINT REFERENCES messages(id),
            target_chat_id BIGINT REFERENCES chats(id),
            changed_from TEXT,
            changed_to TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS attachments (
            id BIGSERIAL PRIMARY KEY,
            attachment_type TEXT NOT NULL,
            file_url TEXT NOT NULL,
            message_id BIGINT REFERENCES messages(id) ON DELETE CASCADE,
            size BIGINT,
            duration BIGINT,
            width BIGINT,
            height BIGINT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            deleted_at TIMESTAMPTZ
        );`,
		`CREATE TABLE IF NOT EXISTS links (
            id BIGSERIAL PRIMARY KEY,
            message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            url TEXT NOT NULL
        );`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}
	return nil
}
