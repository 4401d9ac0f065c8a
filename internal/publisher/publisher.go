// Package publisher delivers reservation events to a message broker.
// Errors are logged and returned so callers can ignore failures without
// interrupting the request that produced the event.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iliyamo/table-reservation/internal/logger"
	"github.com/iliyamo/table-reservation/internal/queue"
)

const (
	BrokerNone     = "none"
	BrokerRabbitMQ = "rabbitmq"
	BrokerKafka    = "kafka"
)

// Publisher sends events and releases its broker connection on Close.
type Publisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
	Close() error
}

// Config selects and configures the broker.
type Config struct {
	Broker      string
	RabbitMQURL string
	Brokers     []string
	Topic       string
}

// New builds the publisher named by cfg.Broker.  An empty broker means none.
func New(cfg Config, log *logger.Logger) (Publisher, error) {
	if log == nil {
		log = logger.Discard()
	}
	switch strings.ToLower(cfg.Broker) {
	case "", BrokerNone:
		return Noop{}, nil
	case BrokerRabbitMQ:
		return NewRabbitMQ(cfg.RabbitMQURL, queue.ReservationQueueName, log), nil
	case BrokerKafka:
		return NewKafka(cfg.Brokers, cfg.Topic, log)
	default:
		return nil, fmt.Errorf("unknown events broker %q", cfg.Broker)
	}
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, queue.ReservationEvent) error { return nil }
func (Noop) Close() error                                          { return nil }

func encode(ev queue.ReservationEvent) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}
