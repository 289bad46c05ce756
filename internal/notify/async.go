package notify

import (
	"context"
	"log/slog"
	"time"
)

// Publisher delivers one notification synchronously.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Async is a Dispatcher that buffers notifications and hands them to a
// Publisher from a single worker goroutine started by Run.  When the
// buffer is full the notification is dropped and logged.
type Async struct {
	pub     Publisher
	queue   chan Notification
	log     *slog.Logger
	timeout time.Duration
}

// NewAsync returns a dispatcher with the given buffer size.
func NewAsync(pub Publisher, buffer int, log *slog.Logger) *Async {
	if buffer < 1 {
		buffer = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Async{pub: pub, queue: make(chan Notification, buffer), log: log, timeout: 5 * time.Second}
}

// Dispatch enqueues n without blocking.
func (a *Async) Dispatch(ctx context.Context, n Notification) {
	select {
	case a.queue <- n:
	default:
		a.log.WarnContext(ctx, "notification dropped, buffer full",
			slog.String("kind", string(n.Kind)),
			slog.String("event_id", n.EventID),
			slog.String("entrant_id", n.EntrantID),
		)
	}
}

// Run publishes queued notifications until ctx is cancelled, then drains
// whatever is still buffered with a short deadline.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case n := <-a.queue:
			a.publish(ctx, n)
		case <-ctx.Done():
			a.drain()
			return nil
		}
	}
}

func (a *Async) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	for {
		select {
		case n := <-a.queue:
			a.publish(ctx, n)
		default:
			return
		}
	}
}

func (a *Async) publish(ctx context.Context, n Notification) {
	pctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.pub.Publish(pctx, n); err != nil {
		a.log.ErrorContext(ctx, "can't publish notification",
			slog.String("err", err.Error()),
			slog.String("kind", string(n.Kind)),
			slog.String("event_id", n.EventID),
			slog.String("entrant_id", n.EntrantID),
		)
	}
}

// LogPublisher writes notifications to the structured log.  It stands in
// for the broker in development.
type LogPublisher struct {
	Log *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, n Notification) error {
	l := p.Log
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "notification",
		slog.String("kind", string(n.Kind)),
		slog.String("event_id", n.EventID),
		slog.String("entrant_id", n.EntrantID),
		slog.String("invitation_id", n.InvitationID),
	)
	return nil
}
