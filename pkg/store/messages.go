package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const messageColumns = `id, conversation_id, sender, message, date`

// CreateMessage appends m to its conversation and bumps the conversation's
// updated_at in the same transaction. m.ID and m.Date are set on success.
func (s *Store) CreateMessage(ctx context.Context, m *Message) error {
	return s.record("create_message", s.createMessage(ctx, m))
}

func (s *Store) createMessage(ctx context.Context, m *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()

	res, err := tx.ExecContext(ctx, s.dialect.rebind(
		`UPDATE conversations SET updated_at = ? WHERE id = ?`),
		s.dialect.timeArg(now), m.ConversationID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	var id int64
	if err := tx.QueryRowContext(ctx, s.dialect.rebind(
		`INSERT INTO messages (conversation_id, sender, message, date) VALUES (?, ?, ?, ?) RETURNING id`),
		m.ConversationID, m.Sender, m.Body, s.dialect.timeArg(now),
	).Scan(&id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	m.ID = id
	m.Date = now
	return nil
}

// ListMessages returns a conversation's messages oldest first. An unknown
// conversation yields an empty list.
func (s *Store) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? ORDER BY date, id`), conversationID)
	if err != nil {
		return nil, s.record("list_messages", err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Body, timestamp{&m.Date}); err != nil {
			return nil, s.record("list_messages", err)
		}
		out = append(out, m)
	}
	if err := s.record("list_messages", rows.Err()); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteMessagesBefore removes messages dated before cutoff and returns how
// many were deleted.
func (s *Store) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`DELETE FROM messages WHERE date < ?`), s.dialect.timeArg(cutoff))
	if err != nil {
		return 0, s.record("prune_messages", err)
	}
	n, err := res.RowsAffected()
	return n, s.record("prune_messages", err)
}
