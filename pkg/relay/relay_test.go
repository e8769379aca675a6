package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatrelay/pkg/bus"
	"chatrelay/pkg/channel"
	"chatrelay/pkg/config"
)

const (
	testGreeting = "welcome!"
	testFallback = "try again later"
)

type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply
}

func (f *fakeCompleter) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []bus.OutboundMessage
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Notify(ctx context.Context, msg bus.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeNotifier) messages() []bus.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bus.OutboundMessage(nil), f.sent...)
}

type fakeSink struct {
	mu      sync.Mutex
	enabled bool
	err     error
	records []bus.ExchangeRecord
}

func (f *fakeSink) Name() string  { return "fake" }
func (f *fakeSink) Enabled() bool { return f.enabled }

func (f *fakeSink) Record(_ context.Context, record bus.ExchangeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return f.err
}

func (f *fakeSink) Close(context.Context) error { return nil }

func (f *fakeSink) recorded() []bus.ExchangeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bus.ExchangeRecord(nil), f.records...)
}

type harness struct {
	completer *fakeCompleter
	notifier  *fakeNotifier
	sink      *fakeSink
	pipeline  *Pipeline
}

func newHarness(t *testing.T, emptyText string) *harness {
	t.Helper()

	h := &harness{
		completer: &fakeCompleter{reply: "hi there"},
		notifier:  &fakeNotifier{},
		sink:      &fakeSink{enabled: true},
	}
	h.pipeline = New(h.completer, h.notifier, h.sink, Options{
		Greeting:      testGreeting,
		EmptyText:     emptyText,
		NotifyTimeout: time.Second,
		RecordTimeout: time.Second,
	}, nil)

	return h
}

func event(chatID, text string) bus.InboundEvent {
	return bus.InboundEvent{ChatID: chatID, SenderID: "7", Text: text, ReceivedAt: time.Now().UTC()}
}

func TestHandleWithoutChatDoesNothing(t *testing.T) {
	h := newHarness(t, config.EmptyTextForward)

	outcome := h.pipeline.Handle(context.Background(), event("", "hello"))

	require.True(t, outcome.Acknowledged)
	require.Equal(t, ReasonNoChat, outcome.Reason)
	require.False(t, outcome.Dispatched)
	require.Empty(t, h.completer.calls())
	require.Empty(t, h.notifier.messages())
	require.Empty(t, h.sink.recorded())
}

func TestHandleRepliesWithCompletion(t *testing.T) {
	h := newHarness(t, config.EmptyTextForward)

	outcome := h.pipeline.Handle(context.Background(), event("42", "hello"))

	require.True(t, outcome.Acknowledged)
	require.True(t, outcome.Dispatched)
	require.True(t, outcome.Delivered)
	require.True(t, outcome.Recorded)
	require.Equal(t, []string{"hello"}, h.completer.calls())
	require.Equal(t, []bus.OutboundMessage{{ChatID: "42", Text: "hi there"}}, h.notifier.messages())

	records := h.sink.recorded()
	require.Len(t, records, 1)
	require.Equal(t, "42", records[0].ChatID)
	require.Equal(t, "7", records[0].SenderID)
	require.Equal(t, "hello", records[0].InboundText)
	require.Equal(t, "hi there", records[0].OutboundText)
	require.NotEmpty(t, records[0].ID)
	require.False(t, records[0].Timestamp.IsZero())
}

func TestHandleStartCommandUsesGreeting(t *testing.T) {
	for _, text := range []string{"/start", " /start ", "/start@RelayBot", "/start campaign-7"} {
		t.Run(text, func(t *testing.T) {
			h := newHarness(t, config.EmptyTextForward)

			outcome := h.pipeline.Handle(context.Background(), event("42", text))

			require.Equal(t, testGreeting, outcome.Reply)
			require.Empty(t, h.completer.calls())
			require.Equal(t, []bus.OutboundMessage{{ChatID: "42", Text: testGreeting}}, h.notifier.messages())
			require.Len(t, h.sink.recorded(), 1)
			require.Equal(t, testGreeting, h.sink.recorded()[0].OutboundText)
		})
	}
}

func TestIsStartCommand(t *testing.T) {
	require.True(t, IsStartCommand("/start"))
	require.True(t, IsStartCommand("/start@bot"))
	require.True(t, IsStartCommand("/start payload"))
	require.False(t, IsStartCommand("/started"))
	require.False(t, IsStartCommand("please /start"))
	require.False(t, IsStartCommand(""))
}

func TestHandleFallbackReplyIsTreatedLikeReply(t *testing.T) {
	h := newHarness(t, config.EmptyTextForward)
	h.completer.reply = testFallback

	outcome := h.pipeline.Handle(context.Background(), event("42", "hello"))

	require.True(t, outcome.Delivered)
	require.Equal(t, []bus.OutboundMessage{{ChatID: "42", Text: testFallback}}, h.notifier.messages())
	require.Equal(t, testFallback, h.sink.recorded()[0].OutboundText)
}

func TestHandleEmptyTextForwardPolicy(t *testing.T) {
	h := newHarness(t, config.EmptyTextForward)

	outcome := h.pipeline.Handle(context.Background(), event("42", ""))

	require.True(t, outcome.Dispatched)
	require.Equal(t, []string{""}, h.completer.calls())
	require.Len(t, h.notifier.messages(), 1)
}

func TestHandleEmptyTextSkipPolicy(t *testing.T) {
	h := newHarness(t, config.EmptyTextSkip)

	outcome := h.pipeline.Handle(context.Background(), event("42", "   "))

	require.True(t, outcome.Acknowledged)
	require.Equal(t, ReasonEmptyText, outcome.Reason)
	require.Empty(t, h.completer.calls())
	require.Empty(t, h.notifier.messages())
	require.Empty(t, h.sink.recorded())
}

func TestHandleDispatchFailureIsContained(t *testing.T) {
	h := newHarness(t, config.EmptyTextForward)
	h.notifier.err = errors.New("telegram: chat not found")

	outcome := h.pipeline.Handle(context.Background(), event("42", "hello"))

	require.True(t, outcome.Acknowledged)
	require.True(t, outcome.Dispatched)
	require.False(t, outcome.Delivered)
	require.Len(t, h.notifier.messages(), 1)
	require.True(t, outcome.Recorded, "persistence does not depend on delivery")
}

func TestHandleRecordFailureIsContained(t *testing.T) {
	h := newHarness(t, config.EmptyTextForward)
	h.sink.err = errors.New("connection reset")

	outcome := h.pipeline.Handle(context.Background(), event("42", "hello"))

	require.True(t, outcome.Acknowledged)
	require.True(t, outcome.Delivered)
	require.False(t, outcome.Recorded)
}

func TestHandleWithDisabledSinkNeverRecords(t *testing.T) {
	h := newHarness(t, config.EmptyTextForward)
	h.sink.enabled = false

	outcome := h.pipeline.Handle(context.Background(), event("42", "hello"))

	require.True(t, outcome.Delivered)
	require.False(t, outcome.Recorded)
	require.Empty(t, h.sink.recorded())
	require.Equal(t, []bus.OutboundMessage{{ChatID: "42", Text: "hi there"}}, h.notifier.messages())
}

func TestHandleWithNilSinkUsesNop(t *testing.T) {
	notifier := &fakeNotifier{}
	pipeline := New(&fakeCompleter{reply: "ok"}, notifier, nil, Options{}, nil)

	outcome := pipeline.Handle(context.Background(), event("42", "hello"))
	require.True(t, outcome.Delivered)
	require.False(t, outcome.Recorded)
}

func TestHandleIsNotIdempotent(t *testing.T) {
	h := newHarness(t, config.EmptyTextForward)

	h.pipeline.Handle(context.Background(), event("42", "hello"))
	h.pipeline.Handle(context.Background(), event("42", "hello"))

	require.Len(t, h.notifier.messages(), 2)
	records := h.sink.recorded()
	require.Len(t, records, 2)
	require.NotEqual(t, records[0].ID, records[1].ID)
}

func TestHandleSurvivesCanceledRequestContext(t *testing.T) {
	h := newHarness(t, config.EmptyTextForward)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := h.pipeline.Handle(ctx, event("42", "hello"))
	require.True(t, outcome.Delivered)
	require.Len(t, h.notifier.messages(), 1)
}

func TestHandleConcurrentChats(t *testing.T) {
	h := newHarness(t, config.EmptyTextForward)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chatID := "10"
			if i%2 == 0 {
				chatID = "20"
			}
			h.pipeline.Handle(context.Background(), event(chatID, "hello"))
		}()
	}
	wg.Wait()

	require.Len(t, h.notifier.messages(), 20)
	require.Len(t, h.sink.recorded(), 20)
}

func TestHandlePublishesLifecycleEvents(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	events, unsubscribe := mb.Subscribe(context.Background(), 16)
	defer unsubscribe()

	notifier := &fakeNotifier{err: errors.New("blocked by user")}
	pipeline := New(&fakeCompleter{reply: "ok"}, notifier, &fakeSink{enabled: true}, Options{Bus: mb}, nil)
	pipeline.Handle(context.Background(), event("42", "hello"))

	var types []bus.EventType
	for len(types) < 4 {
		select {
		case evt := <-events:
			require.NotEmpty(t, evt.RequestID)
			types = append(types, evt.Type)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for events, got %v", types)
		}
	}

	require.Equal(t, []bus.EventType{
		bus.EventReceived,
		bus.EventReplied,
		bus.EventDispatchFailed,
		bus.EventRecorded,
	}, types)
}

func TestHandleBoundsDispatchWhenTimeoutUnset(t *testing.T) {
	var (
		deadline    time.Time
		hasDeadline bool
	)
	notifier := channel.NotifierFunc(func(ctx context.Context, _ bus.OutboundMessage) error {
		deadline, hasDeadline = ctx.Deadline()
		return nil
	})
	sink := &fakeSink{enabled: true}
	pipeline := New(&fakeCompleter{reply: "ok"}, notifier, sink, Options{NotifyTimeout: 0, RecordTimeout: -time.Second}, nil)

	startedAt := time.Now()
	outcome := pipeline.Handle(context.Background(), event("42", "hello"))

	require.True(t, outcome.Delivered)
	require.True(t, hasDeadline)
	require.WithinDuration(t, startedAt.Add(defaultNotifyTimeout), deadline, time.Second)
	require.Equal(t, defaultRecordTimeout, pipeline.opts.RecordTimeout)
}
