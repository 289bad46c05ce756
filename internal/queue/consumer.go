package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/enrollment-lottery/internal/notify"
)

// Consumer drains the notification queue into a log file.
type Consumer struct {
	URL   string
	Queue string
	Dir   string // directory of notifications.log, "logs" by default
	Log   *slog.Logger

	MaxBackoff time.Duration // reconnect delay cap, 30s by default
}

// Run connects to the broker and consumes until ctx is cancelled.
// Connection failures are retried with jittered exponential backoff
// capped at MaxBackoff; the schedule restarts after every successful dial.
func (c *Consumer) Run(ctx context.Context) error {
	if c.Queue == "" {
		c.Queue = DefaultQueue
	}
	if c.Dir == "" {
		c.Dir = "logs"
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}

	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(min(time.Second, c.MaxBackoff)),
		backoff.WithMaxInterval(c.MaxBackoff),
		backoff.WithMaxElapsedTime(0),
	)
	err := backoff.RetryNotify(func() error {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			return fmt.Errorf("dial broker: %w", err)
		}
		defer func() { _ = conn.Close() }()
		exp.Reset()

		err = c.consume(ctx, conn)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(exp, ctx), func(err error, next time.Duration) {
		c.Log.WarnContext(ctx, "notification consumer: reconnecting",
			slog.String("err", err.Error()), slog.Duration("retry_in", next))
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.WarnContext(ctx, "notification consumer: set QoS failed", slog.String("err", err.Error()))
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.Handle(d.Body); err != nil {
			c.Log.ErrorContext(ctx, "notification consumer: handle message failed", slog.String("err", err.Error()))
			_ = d.Nack(false, false) // do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Handle decodes one message body and appends it to notifications.log.
func (c *Consumer) Handle(body []byte) error {
	var n notify.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if n.Kind == "" || n.EventID == "" || n.EntrantID == "" {
		return errors.New("notification without kind, event or entrant")
	}
	dir := c.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "notifications.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(n)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders n as a single human-friendly log line.
func FormatLine(n notify.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | event_id=%s | entrant_id=%s",
		n.OccurredAt.UTC().Format(time.RFC3339), n.Kind, n.EventID, n.EntrantID)
	if n.InvitationID != "" {
		fmt.Fprintf(&b, " | invitation_id=%s", n.InvitationID)
	}
	if n.ReplyBy != nil {
		fmt.Fprintf(&b, " | reply_by=%s", n.ReplyBy.UTC().Format(time.RFC3339))
	}
	if n.By != "" {
		fmt.Fprintf(&b, " | by=%s", n.By)
	}
	b.WriteByte('\n')
	return b.String()
}
