package completion

import "github.com/zoobzio/capitan"

// Signals emitted around every completion call.
const (
	Started   = capitan.Signal("completion.started")
	Completed = capitan.Signal("completion.completed")
	Failed    = capitan.Signal("completion.failed")
)

// Keys for completion signal fields.
var (
	ProviderKey     = capitan.NewStringKey("completion.provider")
	ModelKey        = capitan.NewStringKey("completion.model")
	PromptLengthKey = capitan.NewIntKey("completion.prompt.length")
	ReplyLengthKey  = capitan.NewIntKey("completion.reply.length")
	TotalTokensKey  = capitan.NewIntKey("completion.tokens.total")
	DurationMsKey   = capitan.NewIntKey("completion.duration.ms")
	ErrorKey        = capitan.NewStringKey("completion.error")
)
