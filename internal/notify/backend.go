package notify

import (
	"fmt"
	"log/slog"

	"seatline/internal/config"
	"seatline/internal/messaging"
)

// Backend is the notifier picked by NOTIFY_BACKEND along with the broker
// connection it publishes through. The API and the worker both open it so
// confirmations and cancellations land on the same broker.
type Backend struct {
	Notifier Notifier
	NATS     *messaging.NATSClient
	AMQP     *messaging.AMQPPublisher
}

func Open(cfg *config.Config) (*Backend, error) {
	switch cfg.Checkout.NotifyBackend {
	case config.NotifyNATS:
		nc, err := messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			return nil, err
		}
		return &Backend{Notifier: NewEventNotifier(nc), NATS: nc}, nil
	case config.NotifyAMQP:
		pub, err := messaging.NewAMQPPublisher(cfg.AMQP)
		if err != nil {
			return nil, err
		}
		return &Backend{Notifier: NewEventNotifier(pub), AMQP: pub}, nil
	case config.NotifyLog:
		return &Backend{Notifier: LogNotifier{}}, nil
	}
	return nil, fmt.Errorf("unknown notify backend %q", cfg.Checkout.NotifyBackend)
}

// Close closes whichever broker connection the backend owns
func (b *Backend) Close() {
	if b.NATS != nil {
		if err := b.NATS.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}
	if b.AMQP != nil {
		if err := b.AMQP.Close(); err != nil {
			slog.Error("Error closing AMQP connection", "error", err)
		}
	}
}
