package postgres

import (
	"context"
	"fmt"
	"strings"
)

// EnsureSchema creates the flashcard table and its indexes if missing.
// Supabase projects already ship pgcrypto, which provides gen_random_uuid.
func EnsureSchema(ctx context.Context, db DBTX, tables *TableNames) error {
	t := tables.Flashcards
	name := strings.TrimSuffix(t, "s")

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id UUID NOT NULL,
				front TEXT NOT NULL CHECK (char_length(front) BETWEEN 1 AND 2000),
				back TEXT NOT NULL CHECK (char_length(back) BETWEEN 1 AND 2000),
				subject TEXT CHECK (subject IS NULL OR char_length(subject) <= 100),
				source TEXT NOT NULL DEFAULT 'manual'
					CHECK (source IN ('manual', 'ai-full', 'ai-edited')),
				generation_id UUID,
				next_review_at DATE NOT NULL DEFAULT CURRENT_DATE,
				last_review_at TIMESTAMPTZ,
				review_count INTEGER NOT NULL DEFAULT 0 CHECK (review_count >= 0),
				ease_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
				content_hash TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT %s_generation_check CHECK ((source = 'manual') = (generation_id IS NULL))
			)`, t, name),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_user_content_idx ON %s (user_id, content_hash)`, name, t),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_created_idx ON %s (user_id, created_at DESC)`, name, t),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_review_idx ON %s (user_id, next_review_at)`, name, t),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_subject_idx ON %s (user_id, subject)`, name, t),
	}

	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// DropTables removes every table this service owns.
func DropTables(ctx context.Context, db DBTX, tables *TableNames) error {
	if _, err := db.Exec(ctx, "DROP TABLE IF EXISTS "+tables.Flashcards+" CASCADE"); err != nil {
		return fmt.Errorf("drop %s: %w", tables.Flashcards, err)
	}
	return nil
}

// DeleteUserFlashcards removes all cards owned by userID and reports how many went.
func DeleteUserFlashcards(ctx context.Context, db DBTX, tables *TableNames, userID string) (int64, error) {
	tag, err := db.Exec(ctx, "DELETE FROM "+tables.Flashcards+" WHERE user_id = $1", userID)
	if err != nil {
		return 0, fmt.Errorf("delete user flashcards: %w", err)
	}
	return tag.RowsAffected(), nil
}
