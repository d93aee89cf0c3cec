package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"seatline/internal/database"
	"seatline/internal/models"
	"seatline/internal/repository"
)

// DB is the PostgreSQL store. Seat compare-and-swap is a single conditional
// UPDATE, so it stays correct without a surrounding transaction.
type DB struct {
	db *database.DB
}

func New(db *database.DB) *DB {
	return &DB{db: db}
}

var _ repository.Database = (*DB)(nil)

func (d *DB) Seats() repository.SeatStore       { return &seatRepo{q: d.db} }
func (d *DB) Bookings() repository.BookingStore { return &bookingRepo{q: d.db} }
func (d *DB) Payments() repository.PaymentStore { return &paymentRepo{q: d.db} }

func (d *DB) SupportsTransactions() bool { return true }

func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Error("Failed to rollback transaction", "error", rbErr)
			}
		}
	}()

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

type txStore struct {
	tx *sqlx.Tx
}

func (t *txStore) Seats() repository.SeatStore       { return &seatRepo{q: t.tx} }
func (t *txStore) Bookings() repository.BookingStore { return &bookingRepo{q: t.tx} }
func (t *txStore) Payments() repository.PaymentStore { return &paymentRepo{q: t.tx} }

const seatColumns = `trip_id, seat_label, status, holder_booking_id, hold_expires_at, updated_at`

// numeric labels first, in numeric order
const seatOrder = `ORDER BY (seat_label ~ '^[0-9]+$') DESC,
	CASE WHEN seat_label ~ '^[0-9]+$' THEN seat_label::bigint END, seat_label`

type seatRepo struct {
	q sqlx.ExtContext
}

func (r *seatRepo) EnsureSeeded(ctx context.Context, tripID int64, seatCount int) (int, error) {
	query := `
		INSERT INTO seat_records (trip_id, seat_label, status, updated_at)
		SELECT $1::bigint, gs::text, 'available', NOW()
		FROM generate_series(1, $2::int) AS gs
		WHERE NOT EXISTS (SELECT 1 FROM seat_records WHERE trip_id = $1::bigint)
		ON CONFLICT (trip_id, seat_label) DO NOTHING`

	res, err := r.q.ExecContext(ctx, query, tripID, seatCount)
	if err != nil {
		return 0, fmt.Errorf("failed to seed seats for trip %d: %w", tripID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *seatRepo) InsertIfAbsent(ctx context.Context, tripID int64, label string) error {
	query := `
		INSERT INTO seat_records (trip_id, seat_label, status, updated_at)
		VALUES ($1, $2, 'available', NOW())
		ON CONFLICT (trip_id, seat_label) DO NOTHING`

	_, err := r.q.ExecContext(ctx, query, tripID, label)
	return err
}

func (r *seatRepo) FindByLabels(ctx context.Context, tripID int64, labels []string) ([]models.SeatRecord, error) {
	var seats []models.SeatRecord
	query := `SELECT ` + seatColumns + ` FROM seat_records
		WHERE trip_id = $1 AND seat_label = ANY($2) ` + seatOrder

	if err := sqlx.SelectContext(ctx, r.q, &seats, query, tripID, pq.Array(labels)); err != nil {
		return nil, err
	}
	return seats, nil
}

func (r *seatRepo) ListByTrip(ctx context.Context, tripID int64) ([]models.SeatRecord, error) {
	var seats []models.SeatRecord
	query := `SELECT ` + seatColumns + ` FROM seat_records WHERE trip_id = $1 ` + seatOrder

	if err := sqlx.SelectContext(ctx, r.q, &seats, query, tripID); err != nil {
		return nil, err
	}
	return seats, nil
}

func (r *seatRepo) ListByHolder(ctx context.Context, bookingID string) ([]models.SeatRecord, error) {
	var seats []models.SeatRecord
	query := `SELECT ` + seatColumns + ` FROM seat_records WHERE holder_booking_id = $1 ` + seatOrder

	if err := sqlx.SelectContext(ctx, r.q, &seats, query, bookingID); err != nil {
		return nil, err
	}
	return seats, nil
}

func (r *seatRepo) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.SeatRecord, error) {
	var seats []models.SeatRecord
	query := `SELECT ` + seatColumns + ` FROM seat_records
		WHERE status = 'held' AND hold_expires_at < $1
		ORDER BY hold_expires_at
		LIMIT $2`

	if err := sqlx.SelectContext(ctx, r.q, &seats, query, now, limit); err != nil {
		return nil, err
	}
	return seats, nil
}

func (r *seatRepo) CompareAndSwap(ctx context.Context, tripID int64, label string, t repository.SeatTransition) (bool, error) {
	var expires *time.Time
	if t.To == models.SeatHeld {
		expires = t.HoldExpiresAt
	}

	query := `
		UPDATE seat_records
		SET status = $1, holder_booking_id = $2, hold_expires_at = $3, updated_at = NOW()
		WHERE trip_id = $4 AND seat_label = $5 AND status = $6
		  AND ($7::uuid IS NULL OR holder_booking_id = $7::uuid)`

	res, err := r.q.ExecContext(ctx, query,
		t.To, t.ToHolder, expires, tripID, label, t.From, t.FromHolder)
	if err != nil {
		return false, fmt.Errorf("failed to update seat %s: %w", label, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const bookingColumns = `id, trip_id, user_id, seat_labels, passenger_name, passenger_phone,
	passenger_email, passenger_note, price_per_seat, total_price, status, payment_method,
	payment_ref, created_at, updated_at`

type bookingRepo struct {
	q sqlx.ExtContext
}

func (r *bookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	booking.UpdatedAt = booking.CreatedAt

	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES (:id, :trip_id, :user_id, :seat_labels, :passenger_name, :passenger_phone,
			:passenger_email, :passenger_note, :price_per_seat, :total_price, :status,
			:payment_method, :payment_ref, :created_at, :updated_at)`

	_, err := sqlx.NamedExecContext(ctx, r.q, query, booking)
	return err
}

func (r *bookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	err := sqlx.GetContext(ctx, r.q, booking, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (r *bookingRepo) SetPaymentRef(ctx context.Context, id, paymentID string) error {
	query := `UPDATE bookings SET payment_ref = $1, updated_at = NOW() WHERE id = $2`

	res, err := r.q.ExecContext(ctx, query, paymentID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("booking %s not found", id)
	}
	return nil
}

func (r *bookingRepo) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`

	if err := sqlx.SelectContext(ctx, r.q, &bookings, query, cutoff, limit); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepo) TransitionStatus(ctx context.Context, id string, from, to models.BookingStatus) (bool, error) {
	query := `UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	res, err := r.q.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *bookingRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	return err
}

const paymentColumns = `id, booking_id, method, amount, status, settled_at, created_at, updated_at`

type paymentRepo struct {
	q sqlx.ExtContext
}

func (r *paymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	payment.UpdatedAt = payment.CreatedAt

	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :booking_id, :method, :amount, :status, :settled_at, :created_at, :updated_at)`

	_, err := sqlx.NamedExecContext(ctx, r.q, query, payment)
	return err
}

func (r *paymentRepo) GetByBooking(ctx context.Context, bookingID string) (*models.Payment, error) {
	payment := &models.Payment{}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1 ORDER BY created_at LIMIT 1`

	err := sqlx.GetContext(ctx, r.q, payment, query, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, settledAt *time.Time) error {
	query := `
		UPDATE payments
		SET status = $1, settled_at = COALESCE($2, settled_at), updated_at = NOW()
		WHERE id = $3`

	res, err := r.q.ExecContext(ctx, query, status, settledAt, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("payment %s not found", id)
	}
	return nil
}

func (r *paymentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	return err
}
