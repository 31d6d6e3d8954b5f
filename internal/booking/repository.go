package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository persists bookings to PostgreSQL.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a booking repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		panic("booking: db required")
	}
	return &Repository{db: db}
}

const bookingColumns = `id, customer_phone, customer_name, date_time, duration_minutes, status, notes, created_at, updated_at`

// Create inserts a booking row.
func (r *Repository) Create(ctx context.Context, b *Booking) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.ID, b.CustomerPhone, nullable(b.CustomerName), b.DateTime, b.DurationMinutes,
		string(b.Status), nullable(b.Notes), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("booking: insert: %w", err)
	}
	return nil
}

// GetByID loads a single booking, returning nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*Booking, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)

	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("booking: get by id: %w", err)
	}
	return b, nil
}

// ListForPhone returns a customer's bookings ordered by date_time ascending,
// excluding cancelled rows unless includeCancelled is set.
func (r *Repository) ListForPhone(ctx context.Context, phone string, includeCancelled bool) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE customer_phone = $1
	`
	if !includeCancelled {
		query += ` AND status != 'cancelled'`
	}
	query += ` ORDER BY date_time ASC`

	rows, err := r.db.QueryContext(ctx, query, phone)
	if err != nil {
		return nil, fmt.Errorf("booking: list for phone: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// ListInRange returns non-cancelled bookings whose date_time falls inside
// [start, end]. Callers pass day-aligned bounds for conflict scans.
func (r *Repository) ListInRange(ctx context.Context, start, end time.Time) ([]Booking, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE date_time >= $1 AND date_time <= $2 AND status != 'cancelled'
		ORDER BY date_time ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("booking: list in range: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// List returns the most recently scheduled bookings, optionally filtered by
// status. A non-positive limit defaults to 50.
func (r *Repository) List(ctx context.Context, status string, limit int) ([]Booking, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
	`
	args := []any{}
	if status != "" {
		query += `WHERE status = $1
		ORDER BY date_time DESC
		LIMIT $2`
		args = append(args, status, limit)
	} else {
		query += `ORDER BY date_time DESC
		LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("booking: list: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// CountUpcoming counts non-cancelled bookings at or after from.
func (r *Repository) CountUpcoming(ctx context.Context, from time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE date_time >= $1 AND status != 'cancelled'
	`, from).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("booking: count upcoming: %w", err)
	}
	return count, nil
}

// UpdateStatus sets a booking's status and refreshes updated_at, reporting
// whether a row actually changed.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = $1, updated_at = $2
		WHERE id = $3
	`, string(status), time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("booking: update status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("booking: update status result: %w", err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	var b Booking
	var name, notes sql.NullString
	var status string

	err := row.Scan(&b.ID, &b.CustomerPhone, &name, &b.DateTime, &b.DurationMinutes,
		&status, &notes, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	b.CustomerName = name.String
	b.Notes = notes.String
	b.Status = ParseStatus(status)
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]Booking, error) {
	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan: %w", err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: rows: %w", err)
	}
	return bookings, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
