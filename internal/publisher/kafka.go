package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"github.com/iliyamo/table-reservation/internal/logger"
	"github.com/iliyamo/table-reservation/internal/queue"
)

const headerEventType = "event-type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes events keyed by reservation id, so every event of one
// reservation lands on the same partition in commit order.
type Kafka struct {
	writer messageWriter
	topic  string
	log    *logger.Logger
}

func NewKafka(brokers []string, topic string, log *logger.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if topic == "" {
		topic = queue.ReservationQueueName
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  compress.Snappy,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Debug("kafka writer", "message", msg, "args", args)
		}),
	}
	return &Kafka{writer: w, topic: topic, log: log}, nil
}

func (k *Kafka) Publish(ctx context.Context, ev queue.ReservationEvent) error {
	msg, err := kafkaMessage(ev)
	if err != nil {
		k.log.Error("kafka: encode event failed", "error", err)
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.log.Warn("kafka: publish failed", "topic", k.topic, "type", ev.Type, "reservation_id", ev.ReservationID, "error", err)
		return err
	}
	return nil
}

func (k *Kafka) Close() error { return k.writer.Close() }

func kafkaMessage(ev queue.ReservationEvent) (kafka.Message, error) {
	body, err := encode(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	at, err := time.Parse(time.RFC3339, ev.OccurredAt)
	if err != nil {
		at = time.Now().UTC()
	}
	return kafka.Message{
		Key:     []byte(ev.ReservationID),
		Value:   body,
		Time:    at,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(ev.Type)}},
	}, nil
}
