package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store persists conversations in Postgres, keyed by phone number.
type Store struct {
	db *sql.DB
}

// NewStore creates a conversation store over the given database handle.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("conversation: db cannot be nil")
	}
	return &Store{db: db}
}

// Load returns the live conversation for a phone, or nil when none exists or
// the stored one has expired.
func (s *Store) Load(ctx context.Context, phone string) (*Conversation, error) {
	const query = `
		SELECT phone, messages, state, pending_booking, last_activity, expires_at
		FROM conversations
		WHERE phone = $1`

	var (
		conv        Conversation
		messagesRaw []byte
		state       string
		pendingRaw  []byte
	)
	err := s.db.QueryRowContext(ctx, query, phone).Scan(
		&conv.Phone,
		&messagesRaw,
		&state,
		&pendingRaw,
		&conv.LastActivity,
		&conv.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: load: %w", err)
	}

	if conv.Expired(time.Now().UTC()) {
		return nil, nil
	}

	conv.State = ParseState(state)
	if len(messagesRaw) > 0 {
		if err := json.Unmarshal(messagesRaw, &conv.Messages); err != nil {
			return nil, fmt.Errorf("conversation: decode messages: %w", err)
		}
	}
	if len(pendingRaw) > 0 {
		var pending PendingBooking
		if err := json.Unmarshal(pendingRaw, &pending); err != nil {
			return nil, fmt.Errorf("conversation: decode pending booking: %w", err)
		}
		conv.Pending = &pending
	}
	return &conv, nil
}

// Save upserts the conversation.
func (s *Store) Save(ctx context.Context, conv *Conversation) error {
	messagesRaw, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("conversation: encode messages: %w", err)
	}

	var pendingRaw []byte
	if conv.Pending != nil {
		pendingRaw, err = json.Marshal(conv.Pending)
		if err != nil {
			return fmt.Errorf("conversation: encode pending booking: %w", err)
		}
	}

	const query = `
		INSERT INTO conversations (phone, messages, state, pending_booking, last_activity, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (phone) DO UPDATE SET
			messages = EXCLUDED.messages,
			state = EXCLUDED.state,
			pending_booking = EXCLUDED.pending_booking,
			last_activity = EXCLUDED.last_activity,
			expires_at = EXCLUDED.expires_at`

	if _, err := s.db.ExecContext(ctx, query,
		conv.Phone,
		messagesRaw,
		string(conv.State),
		pendingRaw,
		conv.LastActivity,
		conv.ExpiresAt,
	); err != nil {
		return fmt.Errorf("conversation: save: %w", err)
	}
	return nil
}

// Delete removes the conversation for a phone.
func (s *Store) Delete(ctx context.Context, phone string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE phone = $1`, phone); err != nil {
		return fmt.Errorf("conversation: delete: %w", err)
	}
	return nil
}

// DeleteExpired removes conversations whose expiry has passed and reports how
// many were removed.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("conversation: delete expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("conversation: delete expired count: %w", err)
	}
	return n, nil
}
