package channel

import (
	"context"

	"chatrelay/pkg/bus"
)

// Notifier delivers one outbound message to a chat on some transport
// (Telegram, the local console). Errors are reported to the caller, which
// decides whether they matter.
type Notifier interface {
	Name() string
	Notify(context.Context, bus.OutboundMessage) error
}

// NotifierFunc adapts a plain function into a Notifier.
type NotifierFunc func(context.Context, bus.OutboundMessage) error

func (f NotifierFunc) Name() string {
	return "func"
}

func (f NotifierFunc) Notify(ctx context.Context, msg bus.OutboundMessage) error {
	return f(ctx, msg)
}
