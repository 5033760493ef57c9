package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

const conversationColumns = `id, user_id, model_id, title, created_at, updated_at`

// CreateConversation inserts c, assigning its ID and timestamps.
func (s *Store) CreateConversation(ctx context.Context, c *Conversation) error {
	now := s.now()
	c.ID = uuid.New()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO conversations (`+conversationColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		c.ID, c.UserID, c.ModelID, c.Title, s.dialect.timeArg(now), s.dialect.timeArg(now),
	)
	return s.record("create_conversation", err)
}

// GetConversation returns the conversation with id.
func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`), id)

	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	if err := s.record("get_conversation", err); err != nil {
		return nil, err
	}
	return c, nil
}

// ListConversations returns a user's conversations, most recently active
// first.
func (s *Store) ListConversations(ctx context.Context, userID uuid.UUID) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT `+conversationColumns+` FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, id`), userID)
	if err != nil {
		return nil, s.record("list_conversations", err)
	}
	defer rows.Close()

	out := []Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, s.record("list_conversations", err)
		}
		out = append(out, *c)
	}
	if err := s.record("list_conversations", rows.Err()); err != nil {
		return nil, err
	}
	return out, nil
}

// ConversationUpdate holds the fields to change. Nil fields keep their
// current value.
type ConversationUpdate struct {
	Title   *string
	ModelID *int
}

// UpdateConversation applies u and bumps updated_at.
func (s *Store) UpdateConversation(ctx context.Context, id uuid.UUID, u ConversationUpdate) (*Conversation, error) {
	c, err := s.updateConversation(ctx, id, u)
	if err := s.record("update_conversation", err); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) updateConversation(ctx context.Context, id uuid.UUID, u ConversationUpdate) (*Conversation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`), id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.ModelID != nil {
		c.ModelID = *u.ModelID
	}
	c.UpdatedAt = s.now()

	if _, err := tx.ExecContext(ctx, s.dialect.rebind(
		`UPDATE conversations SET title = ?, model_id = ?, updated_at = ? WHERE id = ?`),
		c.Title, c.ModelID, s.dialect.timeArg(c.UpdatedAt), id,
	); err != nil {
		return nil, err
	}

	return c, tx.Commit()
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	return s.record("delete_conversation", s.deleteConversation(ctx, id))
}

func (s *Store) deleteConversation(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// SQLite only enforces ON DELETE CASCADE with foreign_keys enabled on
	// the connection, so messages are removed explicitly.
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(
		`DELETE FROM messages WHERE conversation_id = ?`), id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM conversations WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.ModelID, &c.Title,
		timestamp{&c.CreatedAt}, timestamp{&c.UpdatedAt})
	if err != nil {
		return nil, err
	}
	return &c, nil
}
