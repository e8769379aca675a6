package bus

import (
	"context"
	"log/slog"
	"time"
)

// LogEvents writes every event published on mb to log until ctx is done or the
// bus closes. It is meant to run in its own goroutine.
func LogEvents(ctx context.Context, mb *MessageBus, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "bus.events")

	events, unsubscribe := mb.Subscribe(ctx, 64)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			logEvent(log, event)
		}
	}
}

func logEvent(log *slog.Logger, event Event) {
	attrs := []any{
		"event_type", event.Type,
		"request_id", event.RequestID,
		"chat_id", event.ChatID,
		"at", event.At.UTC().Format(time.RFC3339Nano),
	}
	if len(event.Payload) > 0 {
		attrs = append(attrs, "payload", event.Payload)
	}

	switch {
	case event.Failed():
		log.Warn("Pipeline event", append(attrs, "error", event.Error)...)
	case event.Type == EventIgnored:
		log.Debug("Pipeline event", attrs...)
	default:
		log.Info("Pipeline event", attrs...)
	}
}
