package audit

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/invoice-admin/internal/core/events"
)

// Writer is the persistence side of the subscriber.
type Writer interface {
	Write(ctx context.Context, evt *events.AuditEvent) error
}

type Subscriber struct {
	writer Writer
	logger *slog.Logger
}

// NewSubscriber logs every audit event; writer may be nil to log only.
func NewSubscriber(writer Writer, logger *slog.Logger) *Subscriber {
	return &Subscriber{writer: writer, logger: logger}
}

// Register attaches the subscriber to every event type on bus.
func (s *Subscriber) Register(bus *events.EventBus) {
	bus.Subscribe(events.AllEvents, s.Handle)
}

func (s *Subscriber) Handle(ctx context.Context, event events.Event) error {
	evt, ok := event.(*events.AuditEvent)
	if !ok {
		return nil
	}

	level := slog.LevelInfo
	if evt.Outcome != events.OutcomeSuccess {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "audit",
		"event_id", evt.ID,
		"action", evt.Action,
		"actor_id", evt.ActorID,
		"outcome", evt.Outcome,
		"target", evt.Target,
		"details", evt.Data)

	if s.writer == nil {
		return nil
	}
	return s.writer.Write(ctx, evt)
}
