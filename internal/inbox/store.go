package inbox

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Store persists inbox events in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates an inbox store over the given database handle.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("inbox: db cannot be nil")
	}
	return &Store{db: db}
}

// Insert appends an event to a phone's timeline and returns it with its
// assigned ID.
func (s *Store) Insert(ctx context.Context, phone, kind, content string) (*Event, error) {
	event := &Event{
		Phone:     phone,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO inbox_events (phone, kind, content, is_read, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
		RETURNING id`,
		event.Phone, event.Kind, event.Content, event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return nil, fmt.Errorf("inbox: insert event: %w", err)
	}
	return event, nil
}

// Threads lists one summary row per phone, most recently active first.
func (s *Store) Threads(ctx context.Context) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (phone)
			phone,
			content AS last_message,
			kind AS last_kind,
			(SELECT COUNT(*) FROM inbox_events u WHERE u.phone = e.phone AND NOT u.is_read) AS unread_count,
			created_at AS last_activity
		FROM inbox_events e
		ORDER BY phone, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("inbox: list threads: %w", err)
	}
	defer rows.Close()

	var threads []Thread
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.Phone, &t.LastMessage, &t.LastKind, &t.UnreadCount, &t.LastActivity); err != nil {
			return nil, fmt.Errorf("inbox: scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inbox: iterate threads: %w", err)
	}
	sortThreadsByActivity(threads)
	return threads, nil
}

// ThreadEvents returns the newest events for a phone, oldest first, capped at
// limit.
func (s *Store) ThreadEvents(ctx context.Context, phone string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone, kind, content, is_read, created_at
		FROM (
			SELECT id, phone, kind, content, is_read, created_at
			FROM inbox_events
			WHERE phone = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC`, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("inbox: list thread events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// EventsSince returns all events with an ID greater than lastID, used by SSE
// reconnects to catch up.
func (s *Store) EventsSince(ctx context.Context, lastID int64) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone, kind, content, is_read, created_at
		FROM inbox_events
		WHERE id > $1
		ORDER BY id ASC`, lastID)
	if err != nil {
		return nil, fmt.Errorf("inbox: list events since: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// MarkRead marks every event on a phone's timeline as read.
func (s *Store) MarkRead(ctx context.Context, phone string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE inbox_events SET is_read = TRUE WHERE phone = $1 AND NOT is_read`, phone); err != nil {
		return fmt.Errorf("inbox: mark read: %w", err)
	}
	return nil
}

func collectEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Phone, &e.Kind, &e.Content, &e.IsRead, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("inbox: scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inbox: iterate events: %w", err)
	}
	return events, nil
}

func sortThreadsByActivity(threads []Thread) {
	sort.Slice(threads, func(i, j int) bool {
		return threads[i].LastActivity.After(threads[j].LastActivity)
	})
}
