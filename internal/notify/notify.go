// Package notify delivers booking notifications outside the commit path.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"seatline/internal/metrics"
	"seatline/internal/models"
)

// Notifier is the outbound notification collaborator
type Notifier interface {
	NotifyBookingConfirmed(ctx context.Context, booking *models.Booking) error
	NotifyBookingCancelled(ctx context.Context, recipient models.Passenger, summary string) error
}

// Publisher is implemented by messaging.NATSClient and messaging.AMQPPublisher
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// EventNotifier turns notifications into broker events
type EventNotifier struct {
	pub Publisher
	now func() time.Time
}

func NewEventNotifier(pub Publisher) *EventNotifier {
	return &EventNotifier{pub: pub, now: time.Now}
}

func (n *EventNotifier) NotifyBookingConfirmed(ctx context.Context, booking *models.Booking) error {
	event := models.BookingConfirmedEvent{
		BookingID:     booking.ID,
		TripID:        booking.TripID,
		Status:        booking.Status,
		SeatLabels:    booking.SeatLabels,
		Passenger:     booking.Passenger,
		TotalAmount:   booking.TotalPrice,
		PaymentMethod: booking.PaymentMethod,
		Timestamp:     n.now(),
	}
	if booking.PaymentRef != nil {
		event.PaymentID = *booking.PaymentRef
	}
	if err := n.pub.Publish(ctx, models.EventBookingConfirmed, event); err != nil {
		return fmt.Errorf("failed to publish booking confirmation: %w", err)
	}
	return nil
}

func (n *EventNotifier) NotifyBookingCancelled(ctx context.Context, recipient models.Passenger, summary string) error {
	event := models.BookingCancelledEvent{
		Recipient: recipient,
		Summary:   summary,
		Timestamp: n.now(),
	}
	if err := n.pub.Publish(ctx, models.EventBookingCancelled, event); err != nil {
		return fmt.Errorf("failed to publish booking cancellation: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyBookingConfirmed(ctx context.Context, booking *models.Booking) error {
	slog.Info("Booking confirmed notification",
		"booking_id", booking.ID, "status", booking.Status, "seats", booking.SeatLabels, "phone", booking.Phone)
	return nil
}

func (LogNotifier) NotifyBookingCancelled(ctx context.Context, recipient models.Passenger, summary string) error {
	slog.Info("Booking cancelled notification", "phone", recipient.Phone, "summary", summary)
	return nil
}

// Async runs every notification in its own goroutine with a bounded timeout.
// Failures are logged and counted, never returned.
type Async struct {
	next    Notifier
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{next: next, timeout: timeout}
}

func (a *Async) NotifyBookingConfirmed(ctx context.Context, booking *models.Booking) error {
	b := *booking
	a.dispatch(ctx, models.EventBookingConfirmed, func(ctx context.Context) error {
		return a.next.NotifyBookingConfirmed(ctx, &b)
	})
	return nil
}

func (a *Async) NotifyBookingCancelled(ctx context.Context, recipient models.Passenger, summary string) error {
	a.dispatch(ctx, models.EventBookingCancelled, func(ctx context.Context) error {
		return a.next.NotifyBookingCancelled(ctx, recipient, summary)
	})
	return nil
}

func (a *Async) dispatch(parent context.Context, event string, fn func(ctx context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.NotificationFailures.WithLabelValues(event).Inc()
				slog.Error("Notification panicked", "event", event, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			metrics.NotificationFailures.WithLabelValues(event).Inc()
			slog.Error("Failed to deliver notification", "event", event, "error", err)
		}
	}()
}

// Wait blocks until every dispatched notification has finished
func (a *Async) Wait() {
	a.wg.Wait()
}
