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
	"go.uber.org/zap"
)

// Consumer appends one line per activity event to a log file.
type Consumer struct {
	url  string
	path string
	log  *zap.Logger
}

// NewConsumer returns a consumer writing to path, by default
// logs/activity.log.
func NewConsumer(url, path string, log *zap.Logger) *Consumer {
	if path == "" {
		path = filepath.Join("logs", "activity.log")
	}
	return &Consumer{url: url, path: path, log: log}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff capped at 30s.  A broken message is rejected without requeue so
// the loop never spins on it.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("activity-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("activity-consumer: consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("activity-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(ActivityQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(ActivityQueue, "", false, false, false, false, nil)
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
			if err := c.handle(d.Type, d.Body); err != nil {
				c.log.Error("activity-consumer: handle message failed", zap.String("kind", d.Type), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(kind string, body []byte) error {
	line, err := FormatLine(kind, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders one event as a single newline-terminated log line.
func FormatLine(kind string, body []byte) (string, error) {
	switch kind {
	case KindScanRecorded:
		var ev ScanRecordedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		species := ev.Species
		if species == "" {
			species = "-"
		}
		return fmt.Sprintf("[%s] Scan recorded | scan_id=%s | user_id=%s | plant=%t | fern=%t | species=%s | confidence=%.2f\n",
			ev.RecordedAt, ev.ScanID, ev.UserID, ev.IsPlant, ev.IsFern, species, ev.Confidence), nil
	case KindUserDeleted:
		var ev UserDeletedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] User deleted | user_id=%s | email=%q | scans_deleted=%d | by=%s\n",
			ev.DeletedAt, ev.UserID, ev.Email, ev.ScansDeleted, ev.DeletedBy), nil
	}
	return "", fmt.Errorf("unknown event kind %q", kind)
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
