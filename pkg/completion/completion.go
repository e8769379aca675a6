package completion

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/provider"
	providertypes "chatrelay/pkg/provider/types"
)

const (
	stepCall     = "provider-call"
	stepTimeout  = "completion-timeout"
	stepFallback = "fallback-reply"
	stepChain    = "completion"
)

// DefaultTimeout bounds a provider call when Options.Timeout is unset.
const DefaultTimeout = 20 * time.Second

var errEmptyReply = errors.New("provider returned empty reply")

// Options holds the process-wide request shape.
type Options struct {
	Model    string
	System   string
	Fallback string
	Timeout  time.Duration
}

// Request flows through the completion chain. Steps return copies so a call
// abandoned by the timeout cannot race with the fallback.
type Request struct {
	Prompt   string
	Reply    string
	FellBack bool
	Result   providertypes.Completion
}

// Client turns a prompt into displayable reply text. It never fails: any
// provider problem yields the configured fallback string.
type Client struct {
	provider provider.Client
	opts     Options
	chain    pipz.Chainable[*Request]
	log      *slog.Logger
}

func New(p provider.Client, opts Options, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		provider: p,
		opts:     opts,
		log:      log.With("component", "completion"),
	}

	if c.opts.Timeout <= 0 {
		c.opts.Timeout = DefaultTimeout
	}

	call := pipz.Apply(stepCall, c.call)
	var primary pipz.Chainable[*Request] = pipz.NewTimeout(stepTimeout, call, c.opts.Timeout)

	var fallback pipz.Chainable[*Request] = pipz.Apply(stepFallback, func(_ context.Context, req *Request) (*Request, error) {
		out := *req
		out.Reply = c.opts.Fallback
		out.FellBack = true
		return &out, nil
	})

	c.chain = pipz.NewFallback(stepChain, primary, fallback)
	return c
}

// Complete returns the trimmed reply for prompt, or the fallback string.
func (c *Client) Complete(ctx context.Context, prompt string) string {
	result, err := c.chain.Process(ctx, &Request{Prompt: prompt})
	if err != nil || result == nil {
		// Only reachable if the fallback step itself fails.
		c.log.Error("Completion chain failed", "error", err)
		return c.opts.Fallback
	}

	return result.Reply
}

func (c *Client) call(ctx context.Context, req *Request) (*Request, error) {
	startedAt := time.Now()
	providerName := c.provider.Name()

	capitan.Info(ctx, Started,
		ProviderKey.Field(providerName),
		ModelKey.Field(c.opts.Model),
		PromptLengthKey.Field(len(req.Prompt)),
	)

	completion, err := c.provider.Complete(ctx, providertypes.CompletionRequest{
		Prompt: req.Prompt,
		System: c.opts.System,
		Model:  c.opts.Model,
	})
	reply := strings.TrimSpace(completion.Text)
	if err == nil && reply == "" {
		err = errEmptyReply
	}

	durationMs := int(time.Since(startedAt).Milliseconds())
	if err != nil {
		capitan.Error(ctx, Failed,
			ProviderKey.Field(providerName),
			ModelKey.Field(c.opts.Model),
			DurationMsKey.Field(durationMs),
			ErrorKey.Field(err.Error()),
		)
		c.log.Warn("Completion failed; using fallback reply",
			"provider", providerName,
			"duration_ms", durationMs,
			"error", err,
		)
		return req, err
	}

	fields := []capitan.Field{
		ProviderKey.Field(providerName),
		ModelKey.Field(completion.Metadata.Model),
		ReplyLengthKey.Field(len(reply)),
		DurationMsKey.Field(durationMs),
	}
	if usage := completion.Metadata.Usage; usage != nil {
		fields = append(fields, TotalTokensKey.Field(int(usage.TotalTokens)))
	}
	capitan.Info(ctx, Completed, fields...)

	c.log.Debug("Completion received",
		"provider", providerName,
		"model", completion.Metadata.Model,
		"duration_ms", durationMs,
		"reply_preview", logger.Preview(reply),
	)

	out := *req
	out.Reply = reply
	out.Result = completion
	return &out, nil
}
