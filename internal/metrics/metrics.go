package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckoutsTotal number of checkout attempts by outcome (error kind or "ok") and commit strategy
	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seatline",
			Name:      "checkouts_total",
			Help:      "The total number of checkout attempts",
		},
		[]string{"outcome", "strategy"},
	)

	CheckoutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seatline",
			Name:      "checkout_duration_seconds",
			Help:      "Time spent in checkout including the commit",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// SeatConflicts lost compare-and-swap attempts on seat records
	SeatConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "seatline",
		Name:      "seat_conflicts_total",
		Help:      "The total number of seat updates that lost a race",
	})

	CompensationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "seatline",
		Name:      "compensation_failures_total",
		Help:      "The total number of failed compensating rollbacks",
	})

	ReaperCancelledBookings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "seatline",
		Name:      "reaper_cancelled_bookings_total",
		Help:      "The total number of expired bookings cancelled by the reaper",
	})

	ReaperReleasedSeats = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "seatline",
		Name:      "reaper_released_seats_total",
		Help:      "The total number of seats returned to available by the reaper",
	})

	ReaperErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "seatline",
		Name:      "reaper_errors_total",
		Help:      "The total number of bookings or seats the reaper failed to process",
	})

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seatline",
			Name:      "notification_failures_total",
			Help:      "The total number of notifications that could not be delivered",
		},
		[]string{"event"},
	)

	// DBConnections pool connections by state: open, in_use, idle
	DBConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "seatline",
			Name:      "db_connections",
			Help:      "Database pool connections by state",
		},
		[]string{"state"},
	)

	DBWaitSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "seatline",
		Name:      "db_wait_seconds",
		Help:      "Total time spent waiting for a pooled connection",
	})
)
