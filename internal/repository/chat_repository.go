package repository

import (
	"context"
	"fmt"

	"plantcare/internal/models"
	"plantcare/pkg/database"
	"plantcare/pkg/logging"
)

// ChatRepository stores the assistant conversation.
type ChatRepository interface {
	// Append stores msgs and, when keep is positive, drops all but the
	// newest keep messages in the same transaction.
	Append(ctx context.Context, keep int, msgs ...models.ChatMessage) error
	// Recent returns the last limit messages in chronological order.
	Recent(ctx context.Context, limit int) ([]models.ChatMessage, error)
	// All returns the whole conversation in chronological order.
	All(ctx context.Context) ([]models.ChatMessage, error)
	Clear(ctx context.Context) error
}

type chatRepository struct {
	db     *database.DB
	logger *logging.StructuredLogger
}

// NewChatRepository creates a chat repository over db.
func NewChatRepository(db *database.DB, logger *logging.StructuredLogger) ChatRepository {
	return &chatRepository{db: db, logger: logger}
}

// Append stores msgs in order and trims the oldest rows atomically
func (r *chatRepository) Append(ctx context.Context, keep int, msgs ...models.ChatMessage) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := tx.Rebind(`INSERT INTO chat_messages (role, content, created_at) VALUES (?, ?, ?)`)
	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx, stmt, string(m.Role), m.Content, m.Timestamp.UTC()); err != nil {
			return fmt.Errorf("failed to insert chat message: %w", err)
		}
	}

	if keep > 0 {
		trim := tx.Rebind(`
			DELETE FROM chat_messages
			WHERE id NOT IN (SELECT id FROM chat_messages ORDER BY id DESC LIMIT ?)
		`)
		res, err := tx.ExecContext(ctx, trim, keep)
		if err != nil {
			return fmt.Errorf("failed to trim chat history: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			r.logger.Debug(ctx, "[REPO_TRIM_CHAT] Dropped oldest chat messages", logging.Fields{"removed": n, "keep": keep})
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chat messages: %w", err)
	}
	return nil
}

func (r *chatRepository) Recent(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	query := `
		SELECT id, role, content, created_at FROM (
			SELECT id, role, content, created_at FROM chat_messages ORDER BY id DESC LIMIT ?
		) recent
		ORDER BY id ASC
	`

	msgs := []models.ChatMessage{}
	if err := r.db.SelectContext(ctx, "recent_chat", &msgs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	return msgs, nil
}

func (r *chatRepository) All(ctx context.Context) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	if err := r.db.SelectContext(ctx, "all_chat", &msgs,
		`SELECT id, role, content, created_at FROM chat_messages ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	return msgs, nil
}

func (r *chatRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "clear_chat", `DELETE FROM chat_messages`); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	r.logger.Info(ctx, "[REPO_CLEAR_CHAT] Chat history cleared", nil)
	return nil
}
