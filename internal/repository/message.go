package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"newspipe/internal/models"
)

// MessageRepository persists raw channel messages.
type MessageRepository interface {
	// LastSavedID returns the highest stored message id for a channel, or 0
	// when the channel has never been seen. It is the resume cursor for the
	// next fetch: re-deriving it from stored rows keeps cursor and data from
	// ever drifting apart.
	LastSavedID(ctx context.Context, channel string) (int64, error)
	// InsertMessages writes rows with insert-or-ignore semantics and reports
	// how many were actually new. Re-inserting an already stored (channel, id)
	// is a no-op, so a run can always be safely repeated.
	InsertMessages(ctx context.Context, msgs []models.Message) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type messageRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

func (r *messageRepository) LastSavedID(ctx context.Context, channel string) (int64, error) {
	var lastID int64
	query := `SELECT COALESCE(MAX(id), 0) FROM messages WHERE channel = $1`
	if err := r.db.GetContext(ctx, &lastID, query, channel); err != nil {
		return 0, fmt.Errorf("failed to read last saved id: %w", err)
	}
	return lastID, nil
}

func (r *messageRepository) InsertMessages(ctx context.Context, msgs []models.Message) (int64, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO messages (channel, id, date_unix, sender_id, sender, views, forwards, replies, text)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (channel, id) DO NOTHING`

	var inserted int64
	for _, msg := range msgs {
		res, err := tx.ExecContext(ctx, query,
			msg.Channel, msg.ID, msg.DateUnix, msg.SenderID, msg.Sender,
			msg.Views, msg.Forwards, msg.Replies, msg.Text)
		if err != nil {
			return 0, fmt.Errorf("failed to insert message %s/%d: %w", msg.Channel, msg.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit messages: %w", err)
	}
	return inserted, nil
}

func (r *messageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages`); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
