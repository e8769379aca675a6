package completion

import (
	"context"
	"log/slog"

	"github.com/zoobzio/capitan"
)

// LogSignals mirrors completion signals into log at debug level. Call the
// returned func to detach.
func LogSignals(log *slog.Logger) func() {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "completion.telemetry")

	observer := capitan.Observe(func(ctx context.Context, e *capitan.Event) {
		attrs, ok := signalAttrs(e)
		if !ok {
			return
		}
		if e.Signal() == Failed {
			log.WarnContext(ctx, "Completion signal", attrs...)
			return
		}
		log.DebugContext(ctx, "Completion signal", attrs...)
	})

	return func() { observer.Close() }
}

func signalAttrs(e *capitan.Event) ([]any, bool) {
	switch e.Signal() {
	case Started, Completed, Failed:
	default:
		return nil, false
	}

	attrs := []any{"signal", string(e.Signal())}
	if value, ok := ProviderKey.From(e); ok {
		attrs = append(attrs, "provider", value)
	}
	if value, ok := ModelKey.From(e); ok && value != "" {
		attrs = append(attrs, "model", value)
	}
	if value, ok := DurationMsKey.From(e); ok {
		attrs = append(attrs, "duration_ms", value)
	}
	if value, ok := TotalTokensKey.From(e); ok {
		attrs = append(attrs, "total_tokens", value)
	}
	if value, ok := ErrorKey.From(e); ok {
		attrs = append(attrs, "error", value)
	}

	return attrs, true
}
