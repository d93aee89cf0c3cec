package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"seatline/internal/models"
	"seatline/internal/repository"
)

type seatKey struct {
	tripID int64
	label  string
}

// DB is a process-local store. Every operation is atomic on its own; WithinTx
// records an undo journal and replays it when the function fails.
type DB struct {
	mu       sync.Mutex
	seats    map[seatKey]*models.SeatRecord
	bookings map[string]*models.Booking
	payments map[string]*models.Payment
	txs      bool
	now      func() time.Time
}

type Option func(*DB)

// WithoutTransactions makes SupportsTransactions report false
func WithoutTransactions() Option {
	return func(db *DB) { db.txs = false }
}

// WithClock sets the clock used for updated_at and created_at stamps
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

func New(opts ...Option) *DB {
	db := &DB{
		seats:    make(map[seatKey]*models.SeatRecord),
		bookings: make(map[string]*models.Booking),
		payments: make(map[string]*models.Payment),
		txs:      true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

var _ repository.Database = (*DB)(nil)

func (db *DB) Seats() repository.SeatStore       { return &seatRepo{db: db} }
func (db *DB) Bookings() repository.BookingStore { return &bookingRepo{db: db} }
func (db *DB) Payments() repository.PaymentStore { return &paymentRepo{db: db} }

func (db *DB) SupportsTransactions() bool {
	return db.txs
}

func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if !db.txs {
		return fmt.Errorf("memory store: transactions are disabled")
	}
	j := &journal{}
	err := fn(ctx, &txStore{db: db, j: j})
	if err != nil {
		db.mu.Lock()
		j.rollback()
		db.mu.Unlock()
	}
	return err
}

// journal holds undo steps; they run under db.mu in reverse order
type journal struct {
	mu    sync.Mutex
	steps []func()
}

func (j *journal) record(undo func()) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.steps = append(j.steps, undo)
	j.mu.Unlock()
}

func (j *journal) rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.steps) - 1; i >= 0; i-- {
		j.steps[i]()
	}
	j.steps = nil
}

type txStore struct {
	db *DB
	j  *journal
}

func (t *txStore) Seats() repository.SeatStore       { return &seatRepo{db: t.db, j: t.j} }
func (t *txStore) Bookings() repository.BookingStore { return &bookingRepo{db: t.db, j: t.j} }
func (t *txStore) Payments() repository.PaymentStore { return &paymentRepo{db: t.db, j: t.j} }

type seatRepo struct {
	db *DB
	j  *journal
}

func (r *seatRepo) EnsureSeeded(ctx context.Context, tripID int64, seatCount int) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for k := range r.db.seats {
		if k.tripID == tripID {
			return 0, nil
		}
	}

	created := 0
	for i := 1; i <= seatCount; i++ {
		if r.insertLocked(tripID, strconv.Itoa(i)) {
			created++
		}
	}
	return created, nil
}

func (r *seatRepo) InsertIfAbsent(ctx context.Context, tripID int64, label string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.insertLocked(tripID, label)
	return nil
}

func (r *seatRepo) insertLocked(tripID int64, label string) bool {
	key := seatKey{tripID, label}
	if _, ok := r.db.seats[key]; ok {
		return false
	}
	r.db.seats[key] = &models.SeatRecord{
		TripID:    tripID,
		SeatLabel: label,
		Status:    models.SeatAvailable,
		UpdatedAt: r.db.now(),
	}
	r.j.record(func() { delete(r.db.seats, key) })
	return true
}

func (r *seatRepo) FindByLabels(ctx context.Context, tripID int64, labels []string) ([]models.SeatRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []models.SeatRecord
	seen := make(map[string]bool, len(labels))
	for _, label := range labels {
		if seen[label] {
			continue
		}
		seen[label] = true
		if s, ok := r.db.seats[seatKey{tripID, label}]; ok {
			out = append(out, copySeat(s))
		}
	}
	return out, nil
}

func (r *seatRepo) ListByTrip(ctx context.Context, tripID int64) ([]models.SeatRecord, error) {
	return r.filter(func(s *models.SeatRecord) bool { return s.TripID == tripID }), nil
}

func (r *seatRepo) ListByHolder(ctx context.Context, bookingID string) ([]models.SeatRecord, error) {
	return r.filter(func(s *models.SeatRecord) bool { return s.HeldBy(bookingID) }), nil
}

func (r *seatRepo) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.SeatRecord, error) {
	out := r.filter(func(s *models.SeatRecord) bool {
		return s.Status == models.SeatHeld && s.HoldExpiresAt != nil && s.HoldExpiresAt.Before(now)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *seatRepo) filter(match func(*models.SeatRecord) bool) []models.SeatRecord {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []models.SeatRecord
	for _, s := range r.db.seats {
		if match(s) {
			out = append(out, copySeat(s))
		}
	}
	sortSeats(out)
	return out
}

func (r *seatRepo) CompareAndSwap(ctx context.Context, tripID int64, label string, t repository.SeatTransition) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.seats[seatKey{tripID, label}]
	if !ok || s.Status != t.From {
		return false, nil
	}
	if t.FromHolder != nil && !s.HeldBy(*t.FromHolder) {
		return false, nil
	}

	prev := copySeat(s)
	s.Status = t.To
	s.HolderBookingID = copyString(t.ToHolder)
	s.HoldExpiresAt = nil
	if t.To == models.SeatHeld {
		s.HoldExpiresAt = copyTime(t.HoldExpiresAt)
	}
	s.UpdatedAt = r.db.now()
	r.j.record(func() { *s = prev })
	return true, nil
}

type bookingRepo struct {
	db *DB
	j  *journal
}

func (r *bookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.bookings[booking.ID]; ok {
		return fmt.Errorf("booking %s already exists", booking.ID)
	}
	now := r.db.now()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now
	b := copyBooking(booking)
	r.db.bookings[booking.ID] = &b
	id := booking.ID
	r.j.record(func() { delete(r.db.bookings, id) })
	return nil
}

func (r *bookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	b, ok := r.db.bookings[id]
	if !ok {
		return nil, nil
	}
	out := copyBooking(b)
	return &out, nil
}

func (r *bookingRepo) SetPaymentRef(ctx context.Context, id, paymentID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	b, ok := r.db.bookings[id]
	if !ok {
		return fmt.Errorf("booking %s not found", id)
	}
	prev := copyBooking(b)
	b.PaymentRef = &paymentID
	b.UpdatedAt = r.db.now()
	r.j.record(func() { *b = prev })
	return nil
}

func (r *bookingRepo) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var out []models.Booking
	for _, b := range r.db.bookings {
		if b.Status == models.BookingPending && b.CreatedAt.Before(cutoff) {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *bookingRepo) TransitionStatus(ctx context.Context, id string, from, to models.BookingStatus) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	b, ok := r.db.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	prev := copyBooking(b)
	b.Status = to
	b.UpdatedAt = r.db.now()
	r.j.record(func() { *b = prev })
	return true, nil
}

func (r *bookingRepo) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	b, ok := r.db.bookings[id]
	if !ok {
		return nil
	}
	delete(r.db.bookings, id)
	r.j.record(func() { r.db.bookings[id] = b })
	return nil
}

type paymentRepo struct {
	db *DB
	j  *journal
}

func (r *paymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.payments[payment.ID]; ok {
		return fmt.Errorf("payment %s already exists", payment.ID)
	}
	now := r.db.now()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	p := *payment
	p.SettledAt = copyTime(payment.SettledAt)
	r.db.payments[payment.ID] = &p
	id := payment.ID
	r.j.record(func() { delete(r.db.payments, id) })
	return nil
}

func (r *paymentRepo) GetByBooking(ctx context.Context, bookingID string) (*models.Payment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, p := range r.db.payments {
		if p.BookingID == bookingID {
			out := *p
			out.SettledAt = copyTime(p.SettledAt)
			return &out, nil
		}
	}
	return nil, nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, settledAt *time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.payments[id]
	if !ok {
		return fmt.Errorf("payment %s not found", id)
	}
	prev := *p
	p.Status = status
	if settledAt != nil {
		p.SettledAt = copyTime(settledAt)
	}
	p.UpdatedAt = r.db.now()
	r.j.record(func() { *p = prev })
	return nil
}

func (r *paymentRepo) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.payments[id]
	if !ok {
		return nil
	}
	delete(r.db.payments, id)
	r.j.record(func() { r.db.payments[id] = p })
	return nil
}

func copySeat(s *models.SeatRecord) models.SeatRecord {
	out := *s
	out.HolderBookingID = copyString(s.HolderBookingID)
	out.HoldExpiresAt = copyTime(s.HoldExpiresAt)
	return out
}

func copyBooking(b *models.Booking) models.Booking {
	out := *b
	out.SeatLabels = append([]string(nil), b.SeatLabels...)
	out.PaymentRef = copyString(b.PaymentRef)
	out.UserID = copyString(b.UserID)
	return out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// sortSeats orders numeric labels by value and puts the rest after them
func sortSeats(seats []models.SeatRecord) {
	sort.Slice(seats, func(i, j int) bool {
		if seats[i].TripID != seats[j].TripID {
			return seats[i].TripID < seats[j].TripID
		}
		a, errA := strconv.Atoi(seats[i].SeatLabel)
		b, errB := strconv.Atoi(seats[j].SeatLabel)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return seats[i].SeatLabel < seats[j].SeatLabel
	})
}
