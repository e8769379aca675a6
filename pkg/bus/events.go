package bus

import (
	"time"
)

type EventType string

const (
	EventReceived       EventType = "message_received"
	EventIgnored        EventType = "message_ignored"
	EventReplied        EventType = "reply_obtained"
	EventDispatched     EventType = "reply_dispatched"
	EventDispatchFailed EventType = "reply_dispatch_failed"
	EventRecorded       EventType = "exchange_recorded"
	EventRecordFailed   EventType = "exchange_record_failed"
)

// Event is a pipeline lifecycle notification. Events are informational only;
// nothing in the request path waits on a subscriber.
type Event struct {
	Type      EventType         `json:"type"`
	At        time.Time         `json:"at"`
	ChatID    string            `json:"chat_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Failed reports whether the event describes a swallowed downstream failure.
func (e Event) Failed() bool {
	return e.Type == EventDispatchFailed || e.Type == EventRecordFailed
}
