package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"seatline/internal/metrics"
	"seatline/internal/models"
)

const (
	DefaultReaperTTL      = 2 * time.Minute
	DefaultReaperInterval = 60 * time.Second
	defaultBatchSize      = 500
)

// BookingExpirer is the part of the booking service the reaper drives
type BookingExpirer interface {
	PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
	Expire(ctx context.Context, booking *models.Booking) (int, error)
	ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.SeatRecord, error)
	ReleaseExpiredHold(ctx context.Context, seat models.SeatRecord) (bool, error)
}

type ReaperConfig struct {
	TTL       time.Duration
	Interval  time.Duration
	BatchSize int
}

// Reaper cancels pending bookings older than the TTL and frees their seats
type Reaper struct {
	bookings BookingExpirer
	cfg      ReaperConfig
	now      func() time.Time

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// TickResult summarizes one sweep
type TickResult struct {
	Cancelled  int
	SeatsFreed int
	HoldsFreed int
	Failed     int
}

func NewReaper(bookings BookingExpirer, cfg ReaperConfig) *Reaper {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultReaperTTL
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultReaperInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Reaper{
		bookings: bookings,
		cfg:      cfg,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// WithClock replaces time.Now
func (r *Reaper) WithClock(now func() time.Time) *Reaper {
	r.now = now
	return r
}

// Start runs an immediate sweep and then one per interval until Stop or ctx is done
func (r *Reaper) Start(ctx context.Context) {
	slog.Info("Starting booking reaper", "interval", r.cfg.Interval.String(), "ttl", r.cfg.TTL.String())

	r.ticker = time.NewTicker(r.cfg.Interval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.ticker.Stop()

		r.Tick(ctx)
		for {
			select {
			case <-r.ticker.C:
				r.Tick(ctx)
			case <-ctx.Done():
				slog.Info("Booking reaper stopped", "reason", ctx.Err())
				return
			case <-r.done:
				slog.Info("Booking reaper stopped")
				return
			}
		}
	}()
}

// Stop ends the loop and waits for a running sweep to finish
func (r *Reaper) Stop() {
	r.once.Do(func() { close(r.done) })
	r.wg.Wait()
}

// Tick performs one sweep. Each booking and seat is handled on its own;
// a failure is logged and the item is picked up again on the next tick if
// it still qualifies.
func (r *Reaper) Tick(ctx context.Context) TickResult {
	var res TickResult
	now := r.now()
	cutoff := now.Add(-r.cfg.TTL)

	expired, err := r.bookings.PendingBefore(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		metrics.ReaperErrors.Inc()
		slog.Error("Failed to get expired bookings", "error", err)
	}

	for i := range expired {
		booking := &expired[i]
		released, err := r.bookings.Expire(ctx, booking)
		if err != nil {
			res.Failed++
			metrics.ReaperErrors.Inc()
			slog.Error("Failed to expire booking",
				"error", err,
				"booking_id", booking.ID,
				"trip_id", booking.TripID,
				"created_at", booking.CreatedAt)
			continue
		}
		res.Cancelled++
		res.SeatsFreed += released
		metrics.ReaperCancelledBookings.Inc()
		metrics.ReaperReleasedSeats.Add(float64(released))
		slog.Info("Expired booking",
			"booking_id", booking.ID,
			"trip_id", booking.TripID,
			"seats_released", released,
			"age", now.Sub(booking.CreatedAt).String())
	}

	holds, err := r.bookings.ExpiredHolds(ctx, now, r.cfg.BatchSize)
	if err != nil {
		metrics.ReaperErrors.Inc()
		slog.Error("Failed to get expired holds", "error", err)
	}
	for _, seat := range holds {
		ok, err := r.bookings.ReleaseExpiredHold(ctx, seat)
		if err != nil {
			res.Failed++
			metrics.ReaperErrors.Inc()
			slog.Error("Failed to release expired hold", "error", err, "trip_id", seat.TripID, "seat", seat.SeatLabel)
			continue
		}
		if ok {
			res.HoldsFreed++
			metrics.ReaperReleasedSeats.Inc()
		}
	}

	if res.Cancelled > 0 || res.HoldsFreed > 0 || res.Failed > 0 {
		slog.Info("Reaper sweep finished",
			"cancelled", res.Cancelled, "seats_released", res.SeatsFreed,
			"holds_released", res.HoldsFreed, "failed", res.Failed)
	}
	return res
}
