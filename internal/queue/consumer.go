// Package queue contains the background consumer that listens to the
// auth.events queue and writes one audit line per event to a log file.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AuditConsumer appends every AuthEvent it receives to Dir/auth.log.
type AuditConsumer struct {
	URL string
	Dir string
	Log zerolog.Logger
}

// Run connects to RabbitMQ, declares the auth.events queue (durable) and
// consumes it until ctx is cancelled.  Broker failures are retried with
// exponential backoff so the server keeps running without a broker.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("audit-consumer: failed to dial broker")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn().Err(err).Msg("audit-consumer: consume loop ended; reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn().Err(err).Msg("audit-consumer: set QoS failed")
	}

	if _, err := ch.QueueDeclare(AuthEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, AuthEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.HandleMessage(d.Body); err != nil {
			c.Log.Error().Err(err).Msg("audit-consumer: handle message failed")
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// HandleMessage decodes one AuthEvent and appends it to the audit log.
func (c *AuditConsumer) HandleMessage(body []byte) error {
	var ev AuthEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join(c.Dir, "auth.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s | id=%s | email=%q | %s -> %s",
		ev.OccurredAt, ev.Type, ev.ID, ev.Email, ev.From, ev.To)
	if ev.Reason != "" {
		line += fmt.Sprintf(" | reason=%q", ev.Reason)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
