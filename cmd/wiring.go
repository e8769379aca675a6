package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chatrelay/pkg/bus"
	"chatrelay/pkg/channel"
	"chatrelay/pkg/completion"
	"chatrelay/pkg/config"
	"chatrelay/pkg/persona"
	"chatrelay/pkg/provider"
	"chatrelay/pkg/relay"
	"chatrelay/pkg/store"
)

const closeTimeout = 5 * time.Second

// relayStack is everything one process needs to run the pipeline.
type relayStack struct {
	provider provider.Client
	sink     store.Sink
	bus      *bus.MessageBus
	pipeline *relay.Pipeline

	stopTelemetry func()
	stopEvents    context.CancelFunc
}

// newHTTPClient is shared by the completion provider and the Telegram bot so
// both reuse one connection pool.
func newHTTPClient() *http.Client {
	return &http.Client{}
}

func buildStack(ctx context.Context, cfg *config.Config, httpClient *http.Client, notifier channel.Notifier, log *slog.Logger) (*relayStack, error) {
	system, err := persona.Resolve(cfg.Completion.Provider, cfg.Completion.SystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("resolve persona: %w", err)
	}

	client, err := provider.New(cfg.Completion, httpClient)
	if err != nil {
		return nil, fmt.Errorf("initialize provider: %w", err)
	}

	completer := completion.New(client, completion.Options{
		Model:    cfg.Completion.Model,
		System:   system,
		Fallback: cfg.Completion.Fallback,
		Timeout:  cfg.Completion.Timeout,
	}, log)

	sink := store.Open(ctx, cfg.Store, log)

	events := bus.NewMessageBus()
	eventsCtx, stopEvents := context.WithCancel(context.WithoutCancel(ctx))
	go bus.LogEvents(eventsCtx, events, log)

	pipeline := relay.New(completer, notifier, sink, relay.Options{
		Greeting:      cfg.Pipeline.Greeting,
		EmptyText:     cfg.Pipeline.EmptyText,
		NotifyTimeout: cfg.Telegram.Timeout,
		RecordTimeout: cfg.Store.Timeout,
		Bus:           events,
	}, log)

	return &relayStack{
		provider:      client,
		sink:          sink,
		bus:           events,
		pipeline:      pipeline,
		stopTelemetry: completion.LogSignals(log),
		stopEvents:    stopEvents,
	}, nil
}

// Close releases the sink and stops the observers.
func (s *relayStack) Close() {
	s.stopTelemetry()
	s.stopEvents()
	s.bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.sink.Close(ctx); err != nil {
		slog.Default().Warn("Failed to close store", "sink", s.sink.Name(), "error", err)
	}
}
