package relay

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatrelay/pkg/bus"
	"chatrelay/pkg/channel"
	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/store"
)

const (
	startCommand = "/start"

	defaultNotifyTimeout = 10 * time.Second
	defaultRecordTimeout = 5 * time.Second
)

// Reasons an event was acknowledged without a reply.
const (
	ReasonNoChat    = "no_chat"
	ReasonEmptyText = "empty_text"
)

// Completer is the infallible completion contract: it always returns
// displayable text, substituting a fallback on failure.
type Completer interface {
	Complete(ctx context.Context, prompt string) string
}

// Options configures pipeline policy and per-step bounds.
type Options struct {
	Greeting      string
	EmptyText     string
	NotifyTimeout time.Duration
	RecordTimeout time.Duration
	Bus           *bus.MessageBus
}

// Outcome is always acknowledged. The other fields describe what happened
// internally for logging and tests; callers must not turn them into errors.
type Outcome struct {
	Acknowledged bool
	Reason       string
	Reply        string
	Dispatched   bool
	Delivered    bool
	Recorded     bool
}

// Pipeline turns one inbound event into at most one outbound reply.
type Pipeline struct {
	completer Completer
	notifier  channel.Notifier
	sink      store.Sink
	opts      Options
	log       *slog.Logger

	now   func() time.Time
	newID func() string
}

func New(completer Completer, notifier channel.Notifier, sink store.Sink, opts Options, log *slog.Logger) *Pipeline {
	if sink == nil {
		sink = store.Nop{}
	}
	if opts.EmptyText == "" {
		opts.EmptyText = config.EmptyTextForward
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = defaultRecordTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		completer: completer,
		notifier:  notifier,
		sink:      sink,
		opts:      opts,
		log:       log.With("component", "relay.pipeline"),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Handle never fails. Each step contains its own failures; dispatch and
// persistence errors are logged here and otherwise ignored.
func (p *Pipeline) Handle(ctx context.Context, event bus.InboundEvent) Outcome {
	// Telegram may drop the webhook connection early; the reply still goes out.
	ctx = context.WithoutCancel(ctx)

	requestID := p.newID()
	log := p.log.With("request_id", requestID)

	if !event.HasChat() {
		log.Debug("Ignoring update without chat", "update_id", event.UpdateID)
		p.publish(ctx, bus.Event{Type: bus.EventIgnored, RequestID: requestID, Payload: map[string]string{"reason": ReasonNoChat}})
		return Outcome{Acknowledged: true, Reason: ReasonNoChat}
	}

	chatID := strings.TrimSpace(event.ChatID)
	log = log.With("chat_id", chatID)
	log.Info("Received message", "sender_id", event.SenderID, "content", logger.Preview(event.Text))
	p.publish(ctx, bus.Event{Type: bus.EventReceived, ChatID: chatID, RequestID: requestID})

	if strings.TrimSpace(event.Text) == "" && p.opts.EmptyText == config.EmptyTextSkip {
		log.Debug("Ignoring empty message")
		p.publish(ctx, bus.Event{Type: bus.EventIgnored, ChatID: chatID, RequestID: requestID, Payload: map[string]string{"reason": ReasonEmptyText}})
		return Outcome{Acknowledged: true, Reason: ReasonEmptyText}
	}

	source := "completion"
	var reply string
	if IsStartCommand(event.Text) {
		source = "greeting"
		reply = p.opts.Greeting
	} else {
		reply = p.completer.Complete(ctx, event.Text)
	}
	p.publish(ctx, bus.Event{Type: bus.EventReplied, ChatID: chatID, RequestID: requestID, Payload: map[string]string{"source": source}})

	outcome := Outcome{Acknowledged: true, Reply: reply, Dispatched: true}
	outcome.Delivered = p.dispatch(ctx, log, requestID, bus.OutboundMessage{ChatID: chatID, Text: reply})

	if p.sink.Enabled() {
		outcome.Recorded = p.record(ctx, log, requestID, bus.ExchangeRecord{
			ID:           p.newID(),
			ChatID:       chatID,
			SenderID:     event.SenderID,
			InboundText:  event.Text,
			OutboundText: reply,
			Timestamp:    p.now(),
		})
	}

	return outcome
}

func (p *Pipeline) dispatch(ctx context.Context, log *slog.Logger, requestID string, msg bus.OutboundMessage) bool {
	callCtx, cancel := context.WithTimeout(ctx, p.opts.NotifyTimeout)
	defer cancel()

	if err := p.notifier.Notify(callCtx, msg); err != nil {
		log.Warn("Reply dispatch failed", "channel", p.notifier.Name(), "error", err)
		p.publish(ctx, bus.Event{Type: bus.EventDispatchFailed, ChatID: msg.ChatID, RequestID: requestID, Error: err.Error()})
		return false
	}

	log.Info("Reply dispatched", "channel", p.notifier.Name(), "content", logger.Preview(msg.Text))
	p.publish(ctx, bus.Event{Type: bus.EventDispatched, ChatID: msg.ChatID, RequestID: requestID})
	return true
}

func (p *Pipeline) record(ctx context.Context, log *slog.Logger, requestID string, record bus.ExchangeRecord) bool {
	callCtx, cancel := context.WithTimeout(ctx, p.opts.RecordTimeout)
	defer cancel()

	if err := p.sink.Record(callCtx, record); err != nil {
		log.Warn("Exchange record failed", "sink", p.sink.Name(), "error", err)
		p.publish(ctx, bus.Event{Type: bus.EventRecordFailed, ChatID: record.ChatID, RequestID: requestID, Error: err.Error()})
		return false
	}

	log.Debug("Exchange recorded", "sink", p.sink.Name(), "record_id", record.ID)
	p.publish(ctx, bus.Event{Type: bus.EventRecorded, ChatID: record.ChatID, RequestID: requestID})
	return true
}

func (p *Pipeline) publish(ctx context.Context, event bus.Event) {
	if event.At.IsZero() {
		event.At = p.now()
	}
	p.opts.Bus.Publish(ctx, event)
}

// IsStartCommand matches "/start", "/start@BotName" and "/start <payload>".
func IsStartCommand(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}

	command := fields[0]
	return command == startCommand || strings.HasPrefix(command, startCommand+"@")
}
