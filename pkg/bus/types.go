package bus

import (
	"strings"
	"time"
)

// InboundEvent is one decoded chat message. An empty ChatID means the
// envelope carried no usable chat and nothing can be replied to.
type InboundEvent struct {
	ChatID     string    `json:"chat_id"`
	SenderID   string    `json:"sender_id,omitempty"`
	Text       string    `json:"text"`
	UpdateID   int       `json:"update_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// HasChat reports whether a reply target is present.
func (e InboundEvent) HasChat() bool {
	return strings.TrimSpace(e.ChatID) != ""
}

// OutboundMessage is one reply addressed to a chat.
type OutboundMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// ExchangeRecord is the append-only persisted form of one request/reply pair.
type ExchangeRecord struct {
	ID           string    `json:"id" bson:"_id"`
	ChatID       string    `json:"chat_id" bson:"chat_id"`
	SenderID     string    `json:"sender_id,omitempty" bson:"sender_id,omitempty"`
	InboundText  string    `json:"inbound_text" bson:"inbound_text"`
	OutboundText string    `json:"outbound_text" bson:"outbound_text"`
	Timestamp    time.Time `json:"timestamp" bson:"timestamp"`
}
