package chat

import (
	"context"
	"sync"

	"chatrelay/pkg/bus"
)

// Notifier is the console's delivery channel: it keeps the last reply per
// chat so the UI can show exactly what the relay dispatched.
type Notifier struct {
	mu   sync.Mutex
	last map[string]string
}

func NewNotifier() *Notifier {
	return &Notifier{last: make(map[string]string)}
}

func (n *Notifier) Name() string {
	return "console"
}

func (n *Notifier) Notify(_ context.Context, msg bus.OutboundMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last[msg.ChatID] = msg.Text
	return nil
}

// Last returns the most recent reply dispatched to chatID.
func (n *Notifier) Last(chatID string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	text, ok := n.last[chatID]
	return text, ok
}
