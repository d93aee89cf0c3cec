package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"seatline/internal/middleware"
	"seatline/internal/models"
	"seatline/internal/repository"
	"seatline/internal/repository/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed []string
	cancelled []string
	err       error
}

func (n *recordingNotifier) NotifyBookingConfirmed(ctx context.Context, booking *models.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, booking.ID)
	return n.err
}

func (n *recordingNotifier) NotifyBookingCancelled(ctx context.Context, recipient models.Passenger, summary string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, summary)
	return n.err
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.confirmed), len(n.cancelled)
}

const (
	smallTrip  int64 = 1
	largeTrip  int64 = 2
	noBusTrip  int64 = 3
	emptyBus   int64 = 4
	holdTTL          = 2 * time.Minute
	basePrice  int64 = 100000
	unknownTrp int64 = 404
)

func testCatalog() *memory.Catalog {
	route := &models.Route{
		ID:          7,
		Origin:      "Almaty",
		Destination: "Taraz",
		DistanceKm:  80,
		DurationMin: 420,
		Stops: []models.RouteStop{
			{ID: 10, RouteID: 7, Name: "Almaty", Position: 1, DistanceKm: 0},
			{ID: 11, RouteID: 7, Name: "Kaskelen", Position: 2, DistanceKm: 40},
			{ID: 12, RouteID: 7, Name: "Taraz", Position: 3, DistanceKm: 80},
		},
	}
	departure := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	trip := func(id int64, bus *models.Bus) *models.Trip {
		return &models.Trip{
			ID:            id,
			RouteID:       route.ID,
			DepartureTime: departure,
			ArrivalTime:   departure.Add(7 * time.Hour),
			BasePrice:     basePrice,
			Route:         route,
			Bus:           bus,
		}
	}
	return memory.NewCatalog(
		trip(smallTrip, &models.Bus{ID: 1, BusType: "minibus", SeatCount: 4}),
		trip(largeTrip, &models.Bus{ID: 2, BusType: "coach", SeatCount: 60}),
		trip(noBusTrip, nil),
		trip(emptyBus, &models.Bus{ID: 3, BusType: "broken", SeatCount: 0}),
	)
}

type env struct {
	db       repository.Database
	clock    *fakeClock
	notifier *recordingNotifier
	services *Services
}

// strategies builds one environment per commit strategy so every
// behavior is checked against both
var strategies = map[string]func() repository.Database{
	StrategyTransactional: func() repository.Database { return memory.New() },
	StrategyCAS:           func() repository.Database { return memory.New(memory.WithoutTransactions()) },
}

func newEnv(t *testing.T, strategy string, db repository.Database) *env {
	t.Helper()
	clock := newFakeClock()
	notifier := &recordingNotifier{}

	committer, err := NewCommitter(strategy, db)
	require.NoError(t, err)
	require.Equal(t, strategy, committer.Name())

	repos := repository.NewRepositories(db, testCatalog())
	return &env{
		db:       db,
		clock:    clock,
		notifier: notifier,
		services: NewServices(repos, committer, notifier, holdTTL, WithClock(clock.Now)),
	}
}

func forEachStrategy(t *testing.T, fn func(t *testing.T, e *env)) {
	for name, build := range strategies {
		t.Run(name, func(t *testing.T) {
			fn(t, newEnv(t, name, build()))
		})
	}
}

func seats(ids ...string) []models.SeatIdentifier {
	out := make([]models.SeatIdentifier, len(ids))
	for i, id := range ids {
		out[i] = models.SeatIdentifier(id)
	}
	return out
}

func checkoutRequest(tripID int64, method string, ids ...string) *models.CheckoutRequest {
	return &models.CheckoutRequest{
		TripID:        tripID,
		SeatNumbers:   seats(ids...),
		Passenger:     models.Passenger{Name: "Aigerim Sadykova", Phone: "+77015550101"},
		PaymentMethod: method,
	}
}

func (e *env) seatStatuses(t *testing.T, tripID int64) map[string]models.SeatStatus {
	t.Helper()
	list, err := e.db.Seats().ListByTrip(context.Background(), tripID)
	require.NoError(t, err)
	out := make(map[string]models.SeatStatus, len(list))
	for _, s := range list {
		out[s.SeatLabel] = s.Status
	}
	return out
}

var errInjected = errors.New("injected storage failure")

// faultyDB wraps a database and fails or loses chosen operations
type faultyDB struct {
	repository.Database
	failPaymentCreate bool
	loseSeat          string
}

func (f *faultyDB) Seats() repository.SeatStore {
	return &faultySeats{SeatStore: f.Database.Seats(), lose: f.loseSeat}
}

func (f *faultyDB) Payments() repository.PaymentStore {
	return &faultyPayments{PaymentStore: f.Database.Payments(), fail: f.failPaymentCreate}
}

func (f *faultyDB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return f.Database.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(ctx, &faultyStore{Store: tx, db: f})
	})
}

type faultyStore struct {
	repository.Store
	db *faultyDB
}

func (f *faultyStore) Seats() repository.SeatStore {
	return &faultySeats{SeatStore: f.Store.Seats(), lose: f.db.loseSeat}
}

func (f *faultyStore) Payments() repository.PaymentStore {
	return &faultyPayments{PaymentStore: f.Store.Payments(), fail: f.db.failPaymentCreate}
}

type faultySeats struct {
	repository.SeatStore
	lose string
}

// CompareAndSwap reports a lost race for the chosen seat when claiming it
func (f *faultySeats) CompareAndSwap(ctx context.Context, tripID int64, label string, t repository.SeatTransition) (bool, error) {
	if label == f.lose && t.From == models.SeatAvailable {
		return false, nil
	}
	return f.SeatStore.CompareAndSwap(ctx, tripID, label, t)
}

type faultyPayments struct {
	repository.PaymentStore
	fail bool
}

func (f *faultyPayments) Create(ctx context.Context, payment *models.Payment) error {
	if f.fail {
		return errInjected
	}
	return f.PaymentStore.Create(ctx, payment)
}

func contextWithUser(userID string) context.Context {
	return middleware.ContextWithUserID(context.Background(), userID)
}
