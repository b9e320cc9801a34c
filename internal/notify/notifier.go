// Package notify forwards gateway events to chat channels (Telegram,
// Discord). Events are filtered by type so operators receive only the alerts
// they care about.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/goldbridge/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

const (
	queueSize   = 64
	sendTimeout = 15 * time.Second
)

// Notifier dispatches events to one or more Senders. Publish queues events
// for the Run loop; Notify delivers synchronously.
type Notifier struct {
	senders []Sender
	events  map[domain.EventType]bool // allowed event types
	queue   chan domain.Event
	dedup   *Dedup // nil disables suppression
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// events whose type appears in events are forwarded; an empty list allows all.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventType]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.EventType(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		queue:   make(chan domain.Event, queueSize),
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// WithDedup suppresses queued alerts identical to one delivered within
// window. A non-positive window disables suppression.
func (n *Notifier) WithDedup(window time.Duration) *Notifier {
	if window > 0 {
		n.dedup = NewDedup(window)
	} else {
		n.dedup = nil
	}
	return n
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// Publish implements domain.EventPublisher. Filtered events are dropped
// immediately; the rest are queued, or dropped when the queue is full.
func (n *Notifier) Publish(evt domain.Event) {
	if !n.Enabled() || !n.allowed(evt.Type) {
		return
	}
	select {
	case n.queue <- evt:
	default:
		n.logger.Warn("notification queue full, dropping event",
			slog.String("event", string(evt.Type)),
		)
	}
}

// Run delivers queued events until ctx is cancelled, skipping duplicates
// when WithDedup is set.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-n.queue:
			if n.dedup != nil && n.dedup.IsDuplicate(string(evt.Type)+"\x00"+evt.Title+"\x00"+evt.Message) {
				n.logger.DebugContext(ctx, "duplicate alert suppressed",
					slog.String("event", string(evt.Type)),
				)
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			_ = n.dispatch(sendCtx, evt.Title, evt.Message)
			cancel()
		}
	}
}

// Notify sends evt to all senders if its type is allowed.
func (n *Notifier) Notify(ctx context.Context, evt domain.Event) error {
	if !n.allowed(evt.Type) {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", string(evt.Type)),
		)
		return nil
	}
	return n.dispatch(ctx, evt.Title, evt.Message)
}

func (n *Notifier) allowed(t domain.EventType) bool {
	return len(n.events) == 0 || n.events[t]
}

// dispatch sends to every sender. A single sender failure does not prevent
// delivery to the rest; failures are joined into the returned error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), err)
	}
	return nil
}

var _ domain.EventPublisher = (*Notifier)(nil)
