package booking

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db), mock
}

func TestCreateInsertsRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	b := New("+15551110000", "Alice", ts(t, "2025-06-16 10:00:00"), 60, "")
	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs(b.ID, b.CustomerPhone, sqlmock.AnyArg(), b.DateTime, b.DurationMinutes,
			"confirmed", sqlmock.AnyArg(), b.CreatedAt, b.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), b); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListForPhoneExcludesCancelled(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "customer_phone", "customer_name", "date_time", "duration_minutes",
		"status", "notes", "created_at", "updated_at",
	}).AddRow("b1", "+15551110000", "Alice", ts(t, "2025-06-16 10:00:00"), 60, "confirmed", nil, now, now)

	mock.ExpectQuery(`SELECT .+ FROM bookings\s+WHERE customer_phone = \$1\s+AND status != 'cancelled'\s+ORDER BY date_time ASC`).
		WithArgs("+15551110000").
		WillReturnRows(rows)

	got, err := repo.ListForPhone(context.Background(), "+15551110000", false)
	if err != nil {
		t.Fatalf("ListForPhone: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b1" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got[0].Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got[0].Status)
	}
	if got[0].Notes != "" {
		t.Fatalf("expected empty notes for NULL column, got %q", got[0].Notes)
	}
}

func TestUpdateStatusReportsChange(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE bookings\s+SET status = \$1, updated_at = \$2\s+WHERE id = \$3`).
		WithArgs("cancelled", sqlmock.AnyArg(), "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := repo.UpdateStatus(context.Background(), "b1", StatusCancelled)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !changed {
		t.Fatal("expected change to be reported")
	}

	mock.ExpectExec(`UPDATE bookings`).
		WithArgs("cancelled", sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err = repo.UpdateStatus(context.Background(), "missing", StatusCancelled)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if changed {
		t.Fatal("expected no change for unknown id")
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM bookings\s+WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "customer_phone", "customer_name", "date_time", "duration_minutes",
			"status", "notes", "created_at", "updated_at",
		}))

	got, err := repo.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing booking, got %+v", got)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "customer_phone", "customer_name", "date_time", "duration_minutes",
		"status", "notes", "created_at", "updated_at",
	}).AddRow("b1", "+15551110000", nil, ts(t, "2025-06-16 10:00:00"), 60, "cancelled", nil, now, now)

	mock.ExpectQuery(`SELECT .+ FROM bookings\s+WHERE status = \$1\s+ORDER BY date_time DESC\s+LIMIT \$2`).
		WithArgs("cancelled", 10).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), "cancelled", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Status != StatusCancelled {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestListDefaultsLimit(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM bookings\s+ORDER BY date_time DESC\s+LIMIT \$1`).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "customer_phone", "customer_name", "date_time", "duration_minutes",
			"status", "notes", "created_at", "updated_at",
		}))

	if _, err := repo.List(context.Background(), "", 0); err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCountUpcoming(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\)\s+FROM bookings\s+WHERE date_time >= \$1 AND status != 'cancelled'`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountUpcoming(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("CountUpcoming: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7, got %d", count)
	}
}
