package services

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"hoy-server/booking"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

func TestSweeperExpirePending(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	sw := NewSweeper(db, nil, nil, nil)
	sw.Now = fixedClock(now)

	rows := sqlmock.NewRows([]string{"id", "reference", "property_id", "guest_id", "status", "expires_at"}).
		AddRow(1, "HOY-A1B2", 7, 3, "pending", now.Add(-time.Hour)).
		AddRow(2, "HOY-C3D4", 8, 4, "pending", now.Add(-time.Minute))
	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE \(?status = \$1 AND expires_at < \$2`).
		WithArgs(booking.StatusPending, now).
		WillReturnRows(rows)

	// First row flips, second was confirmed by the host in between.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings" SET "status"=\$1,"updated_at"=\$2 WHERE \(?id = \$3 AND status = \$4`).
		WithArgs(booking.StatusExpired, sqlmock.AnyArg(), 1, booking.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings" SET "status"=\$1,"updated_at"=\$2 WHERE \(?id = \$3 AND status = \$4`).
		WithArgs(booking.StatusExpired, sqlmock.AnyArg(), 2, booking.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := sw.ExpirePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweeperExpirePendingNothingDue(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	sw := NewSweeper(db, nil, nil, nil)
	sw.Now = fixedClock(now)

	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE \(?status = \$1 AND expires_at < \$2`).
		WithArgs(booking.StatusPending, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	n, err := sw.ExpirePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweeperAdvanceByClock(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	sw := NewSweeper(db, nil, nil, nil)
	sw.Now = fixedClock(now)

	rows := sqlmock.NewRows([]string{"id", "reference", "property_id", "guest_id", "status", "check_in", "check_out"}).
		// Stay under way: confirmed booking past check-in becomes active.
		AddRow(3, "HOY-E5F6", 7, 3, "confirmed", now.Add(-48*time.Hour), now.Add(72*time.Hour)).
		// Stay over: active booking past check-out completes.
		AddRow(4, "HOY-G7H8", 8, 4, "active", now.Add(-96*time.Hour), now.Add(-time.Hour)).
		// Sweep missed an entire stay: confirmed jumps straight to completed.
		AddRow(5, "HOY-I9J0", 9, 5, "confirmed", now.Add(-240*time.Hour), now.Add(-48*time.Hour))
	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE \(?\(status = \$1 AND check_in <= \$2\) OR \(status = \$3 AND check_out <= \$4\)`).
		WithArgs(booking.StatusConfirmed, now, booking.StatusActive, now).
		WillReturnRows(rows)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings" SET "status"=\$1,"updated_at"=\$2 WHERE \(?id = \$3 AND status = \$4`).
		WithArgs(booking.StatusActive, sqlmock.AnyArg(), 3, booking.StatusConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings" SET "status"=\$1,"updated_at"=\$2 WHERE \(?id = \$3 AND status = \$4`).
		WithArgs(booking.StatusCompleted, sqlmock.AnyArg(), 4, booking.StatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings" SET "status"=\$1,"updated_at"=\$2 WHERE \(?id = \$3 AND status = \$4`).
		WithArgs(booking.StatusCompleted, sqlmock.AnyArg(), 5, booking.StatusConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := sw.AdvanceByClock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweeperAdvanceSkipsConcurrentlyChangedRows(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	sw := NewSweeper(db, nil, nil, nil)
	sw.Now = fixedClock(now)

	rows := sqlmock.NewRows([]string{"id", "reference", "property_id", "guest_id", "status", "check_in", "check_out"}).
		AddRow(6, "HOY-K1L2", 7, 3, "confirmed", now.Add(-time.Hour), now.Add(48*time.Hour))
	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE \(?\(status = \$1 AND check_in <= \$2\) OR \(status = \$3 AND check_out <= \$4\)`).
		WithArgs(booking.StatusConfirmed, now, booking.StatusActive, now).
		WillReturnRows(rows)

	// Cancelled between select and update, the guard leaves it alone.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings" SET "status"=\$1,"updated_at"=\$2 WHERE \(?id = \$3 AND status = \$4`).
		WithArgs(booking.StatusActive, sqlmock.AnyArg(), 6, booking.StatusConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := sw.AdvanceByClock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
