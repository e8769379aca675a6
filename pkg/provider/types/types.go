package types

// CompletionRequest is one single-turn completion call.
type CompletionRequest struct {
	Prompt string
	System string
	Model  string
}

// Completion is the normalized provider response payload.
type Completion struct {
	Text     string
	Metadata CompletionMetadata
}

// CompletionMetadata carries provider/model identity and optional usage accounting.
type CompletionMetadata struct {
	Provider string
	Model    string
	Usage    *TokenUsage
}

// TokenUsage captures token accounting across providers.
type TokenUsage struct {
	InputTokens     int64
	OutputTokens    int64
	TotalTokens     int64
	ReasoningTokens int64
	CacheReadTokens int64
}

// IsZero reports whether all token counters are unset/zero.
func (u TokenUsage) IsZero() bool {
	return u.InputTokens == 0 &&
		u.OutputTokens == 0 &&
		u.TotalTokens == 0 &&
		u.ReasoningTokens == 0 &&
		u.CacheReadTokens == 0
}

// UsageOrNil returns a pointer to u, or nil when nothing was counted.
func UsageOrNil(u TokenUsage) *TokenUsage {
	if u.IsZero() {
		return nil
	}

	return &u
}
