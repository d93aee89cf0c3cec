package consumers

import (
	"context"
	"log/slog"

	"github.com/nats-io/stan.go"

	"seatline/internal/messaging"
	"seatline/internal/models"
)

const queueGroup = "seatline-notifications"

type ConsumerService struct {
	nats     *messaging.NATSClient
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(nats *messaging.NATSClient, handlers *Handlers) *ConsumerService {
	return &ConsumerService{
		nats:     nats,
		handlers: handlers,
	}
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	subscriptions := map[string]stan.MsgHandler{
		models.EventBookingConfirmed: cs.handlers.HandleBookingConfirmed,
		models.EventBookingCancelled: cs.handlers.HandleBookingCancelled,
	}

	for subject, handler := range subscriptions {
		sub, err := cs.nats.SubscribeQueue(subject, queueGroup, handler)
		if err != nil {
			return err
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully", "subjects", len(cs.subs))
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}
	cs.subs = nil
	return nil
}
