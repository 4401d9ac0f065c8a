package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/table-reservation/internal/logger"
)

// DefaultLogPath is where the consumer appends reservation events.
const DefaultLogPath = "logs/reservations.log"

// Consumer reads reservation events from RabbitMQ and appends one line
// per event to a log file.
type Consumer struct {
	URL     string
	Queue   string
	LogPath string
	Log     *logger.Logger
}

// Run connects, declares the queue (durable) and consumes until ctx is
// done.  Broker failures are retried with backoff; a message that cannot
// be handled is rejected without requeue so the loop keeps going.
func (c *Consumer) Run(ctx context.Context) error {
	c.defaults()
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("reservation-consumer: dial failed", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("reservation-consumer: consume loop ended; reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) defaults() {
	if c.Queue == "" {
		c.Queue = ReservationQueueName
	}
	if c.LogPath == "" {
		c.LogPath = DefaultLogPath
	}
	if c.Log == nil {
		c.Log = logger.Discard()
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("reservation-consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.HandleMessage(d.Body); err != nil {
				c.Log.Error("reservation-consumer: handle message failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes body and appends its log line.
func (c *Consumer) HandleMessage(body []byte) error {
	c.defaults()
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.ReservationID == "" {
		return errors.New("event is missing type or reservation_id")
	}
	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as a single human-friendly line.
func FormatLine(ev ReservationEvent) string {
	pairs := make([]string, len(ev.Pairs))
	for i, p := range ev.Pairs {
		pairs[i] = p.String()
	}
	return fmt.Sprintf("[%s] %s | reservation_id=%s | requester_id=%s | venue_id=%s | date=%s | party=%d | status=%s | pairs=[%s]\n",
		ev.OccurredAt, ev.Type, ev.ReservationID, ev.RequesterID, ev.VenueID, ev.Date, ev.PartySize, ev.Status, strings.Join(pairs, ","))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
