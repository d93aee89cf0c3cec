package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"

	"seatline/internal/metrics"
)

// Health is the database part of the /health response
type Health struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	OpenConns    int           `json:"open_connections"`
	InUse        int           `json:"in_use"`
}

func (db *DB) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := db.PingContext(pingCtx)
	stats := db.Stats()
	health := Health{
		Status:       "healthy",
		ResponseTime: time.Since(start),
		OpenConns:    stats.OpenConnections,
		InUse:        stats.InUse,
	}
	if err != nil {
		health.Status = "unhealthy"
		health.Error = err.Error()
		slog.Error("Database health check failed", "error", err)
	}
	return health
}

// ReportPool publishes pool gauges and warns when checkouts queue for
// connections.
func (db *DB) ReportPool() {
	reportPool(db.Stats())
}

func reportPool(stats sql.DBStats) {
	metrics.DBConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
	metrics.DBConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	metrics.DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	metrics.DBWaitSeconds.Set(stats.WaitDuration.Seconds())

	if stats.MaxOpenConnections > 0 && stats.InUse*10 >= stats.MaxOpenConnections*9 {
		slog.Warn("Database pool is nearly exhausted",
			"in_use", stats.InUse, "max_open", stats.MaxOpenConnections)
	}
	if stats.WaitCount > 0 && stats.WaitDuration > time.Second {
		slog.Warn("Queries are waiting for database connections",
			"wait_count", stats.WaitCount, "wait_duration", stats.WaitDuration)
	}
}

// WithRetry runs fn up to three times while it fails with a connection error.
// Only idempotent reads should go through it.
func WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	const attempts = 3
	const backoff = 100 * time.Millisecond

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil || !IsRetryableError(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		slog.Warn("Database read failed, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * backoff):
		}
	}
	return fmt.Errorf("query failed after %d attempts: %w", attempts, err)
}

// IsRetryableError reports connection-level failures: a broken pooled
// connection, a network timeout or a postgres connection exception (class 08).
// Query errors such as constraint violations are never retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "08"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset")
}
