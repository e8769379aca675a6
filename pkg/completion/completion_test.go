package completion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zoobzio/capitan"

	providertypes "chatrelay/pkg/provider/types"
)

const fallbackText = "service unavailable"

type fakeProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	delay   time.Duration
	calls   int
	lastReq providertypes.CompletionRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req providertypes.CompletionRequest) (providertypes.Completion, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return providertypes.Completion{}, ctx.Err()
		}
	}
	if f.err != nil {
		return providertypes.Completion{}, f.err
	}

	return providertypes.Completion{
		Text: f.reply,
		Metadata: providertypes.CompletionMetadata{
			Provider: "fake",
			Model:    "fake-model",
			Usage:    &providertypes.TokenUsage{TotalTokens: 7},
		},
	}, nil
}

func newTestClient(p *fakeProvider, timeout time.Duration) *Client {
	return New(p, Options{
		Model:    "test-model",
		System:   "be kind",
		Fallback: fallbackText,
		Timeout:  timeout,
	}, nil)
}

func TestCompleteReturnsTrimmedReply(t *testing.T) {
	p := &fakeProvider{reply: "  hi there \n"}
	client := newTestClient(p, time.Second)

	require.Equal(t, "hi there", client.Complete(context.Background(), "hello"))
	require.Equal(t, 1, p.calls)
	require.Equal(t, "hello", p.lastReq.Prompt)
	require.Equal(t, "be kind", p.lastReq.System)
	require.Equal(t, "test-model", p.lastReq.Model)
}

func TestCompleteFallsBackOnProviderError(t *testing.T) {
	client := newTestClient(&fakeProvider{err: errors.New("502 bad gateway")}, time.Second)

	require.Equal(t, fallbackText, client.Complete(context.Background(), "hello"))
}

func TestCompleteFallsBackOnEmptyReply(t *testing.T) {
	client := newTestClient(&fakeProvider{reply: "   "}, time.Second)

	require.Equal(t, fallbackText, client.Complete(context.Background(), "hello"))
}

func TestCompleteFallsBackOnTimeout(t *testing.T) {
	client := newTestClient(&fakeProvider{reply: "too late", delay: 5 * time.Second}, 50*time.Millisecond)

	startedAt := time.Now()
	require.Equal(t, fallbackText, client.Complete(context.Background(), "hello"))
	require.Less(t, time.Since(startedAt), 2*time.Second)
}

func TestCompleteForwardsEmptyPrompt(t *testing.T) {
	p := &fakeProvider{reply: "say something"}
	client := newTestClient(p, 0)

	require.Equal(t, "say something", client.Complete(context.Background(), ""))
	require.Equal(t, "", p.lastReq.Prompt)
}

func TestCompleteWithEmptyFallbackReturnsEmpty(t *testing.T) {
	client := New(&fakeProvider{err: errors.New("down")}, Options{Timeout: time.Second}, nil)

	require.Equal(t, "", client.Complete(context.Background(), "hello"))
}

func TestCompleteEmitsFailedSignal(t *testing.T) {
	received := make(chan string, 4)
	listener := capitan.Hook(Failed, func(_ context.Context, e *capitan.Event) {
		message, _ := ErrorKey.From(e)
		providerName, _ := ProviderKey.From(e)
		if providerName == "fake" {
			received <- message
		}
	})
	defer listener.Close()

	client := newTestClient(&fakeProvider{err: errors.New("quota exceeded")}, time.Second)
	client.Complete(context.Background(), "hello")

	select {
	case message := <-received:
		require.Contains(t, message, "quota exceeded")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for completion.failed signal")
	}
}

func TestCompleteEmitsCompletedSignal(t *testing.T) {
	received := make(chan int, 4)
	listener := capitan.Hook(Completed, func(_ context.Context, e *capitan.Event) {
		tokens, _ := TotalTokensKey.From(e)
		received <- tokens
	})
	defer listener.Close()

	client := newTestClient(&fakeProvider{reply: "ok"}, time.Second)
	client.Complete(context.Background(), "hello")

	select {
	case tokens := <-received:
		require.Equal(t, 7, tokens)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for completion.completed signal")
	}
}

func TestCompleteIsSafeForConcurrentUse(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	client := newTestClient(p, time.Second)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.Equal(t, "ok", client.Complete(context.Background(), "hello"))
		}()
	}
	wg.Wait()

	require.Equal(t, 16, p.calls)
}

func TestNewBoundsCallsWhenTimeoutUnset(t *testing.T) {
	client := New(&fakeProvider{reply: "ok"}, Options{}, nil)
	require.Equal(t, DefaultTimeout, client.opts.Timeout)

	client = New(&fakeProvider{reply: "ok"}, Options{Timeout: -time.Second}, nil)
	require.Equal(t, DefaultTimeout, client.opts.Timeout)
	require.Equal(t, "ok", client.Complete(context.Background(), "hello"))
}
