package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type AMQPConfig struct {
	URL string
}

// AMQPPublisher publishes JSON messages to durable queues named after the subject
type AMQPPublisher struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func NewAMQPPublisher(cfg AMQPConfig) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: cfg.URL, declared: make(map[string]bool)}
	if err := p.connect(); err != nil {
		return nil, err
	}
	slog.Info("Connected to RabbitMQ")
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	p.conn = conn
	p.ch = ch
	p.declared = make(map[string]bool)
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}

	if !p.declared[subject] {
		// durable so messages survive broker restarts
		if _, err := p.ch.QueueDeclare(subject, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", subject, err)
		}
		p.declared[subject] = true
	}

	err = p.ch.PublishWithContext(ctx, "", subject, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", subject, err)
	}

	slog.Debug("Published message", "queue", subject)
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
