package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/stan.go"

	"seatline/internal/models"
)

// Delivery sends a rendered message to a passenger
type Delivery interface {
	Deliver(ctx context.Context, recipient models.Passenger, subject, body string) error
}

// LogDelivery writes messages to the log instead of a real channel
type LogDelivery struct{}

func (LogDelivery) Deliver(ctx context.Context, recipient models.Passenger, subject, body string) error {
	slog.Info("Passenger notification",
		"phone", recipient.Phone, "name", recipient.Name, "subject", subject, "body", body)
	return nil
}

type Handlers struct {
	delivery Delivery
}

func NewHandlers(delivery Delivery) *Handlers {
	return &Handlers{delivery: delivery}
}

func (h *Handlers) HandleBookingConfirmed(m *stan.Msg) {
	if err := h.bookingConfirmed(context.Background(), m.Data); err != nil {
		slog.Error("Failed to process booking confirmed event", "sequence", m.Sequence, "error", err)
		return
	}
	if err := m.Ack(); err != nil {
		slog.Error("Failed to ack booking confirmed event", "sequence", m.Sequence, "error", err)
	}
}

func (h *Handlers) HandleBookingCancelled(m *stan.Msg) {
	if err := h.bookingCancelled(context.Background(), m.Data); err != nil {
		slog.Error("Failed to process booking cancelled event", "sequence", m.Sequence, "error", err)
		return
	}
	if err := m.Ack(); err != nil {
		slog.Error("Failed to ack booking cancelled event", "sequence", m.Sequence, "error", err)
	}
}

func (h *Handlers) bookingConfirmed(ctx context.Context, data []byte) error {
	var event models.BookingConfirmedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		// malformed events are dropped, redelivery would not fix them
		slog.Error("Failed to unmarshal booking confirmed event", "error", err)
		return nil
	}

	slog.Info("Processing booking confirmed event", "booking_id", event.BookingID, "status", event.Status)

	subject := "Booking confirmed"
	if event.Status == models.BookingPending {
		subject = "Booking awaiting payment"
	}
	body := fmt.Sprintf("Booking %s, trip %d, seats %s, total %d via %s",
		event.BookingID, event.TripID, strings.Join(event.SeatLabels, ", "), event.TotalAmount, event.PaymentMethod)

	return h.delivery.Deliver(ctx, event.Passenger, subject, body)
}

func (h *Handlers) bookingCancelled(ctx context.Context, data []byte) error {
	var event models.BookingCancelledEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("Failed to unmarshal booking cancelled event", "error", err)
		return nil
	}

	slog.Info("Processing booking cancelled event", "phone", event.Recipient.Phone)

	return h.delivery.Deliver(ctx, event.Recipient, "Booking cancelled", event.Summary)
}
