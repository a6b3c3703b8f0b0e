package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"project-hub/internal/logger"
)

// Connect opens the chat database and applies migrations.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS project_chats (
            id UUID PRIMARY KEY,
            project_id TEXT NOT NULL UNIQUE,
            participants TEXT[] NOT NULL DEFAULT '{}',
            message_seq BIGINT NOT NULL DEFAULT 0,
            last_message_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS project_chats_last_message_idx ON project_chats (last_message_at DESC);`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
            id UUID PRIMARY KEY,
            chat_id UUID NOT NULL REFERENCES project_chats(id) ON DELETE CASCADE,
            project_id TEXT NOT NULL,
            seq BIGINT NOT NULL,
            sender_id TEXT NOT NULL,
            sender_name TEXT NOT NULL,
            content TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(project_id, seq)
        );`,
		`CREATE INDEX IF NOT EXISTS chat_messages_recent_idx ON chat_messages (project_id, created_at DESC, seq DESC);`,
		`CREATE TABLE IF NOT EXISTS chat_message_deletions (
            message_id UUID NOT NULL REFERENCES chat_messages(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(message_id, user_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	logger.Info().Int("count", len(migrations)).Msg("[DB] migrations applied")
	return nil
}
