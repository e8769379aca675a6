package cmd

import (
	"strings"
	"time"

	"chatrelay/pkg/bus"
)

var testBotToken = "123456789:" + strings.Repeat("A", 35)

func chatEvent(text string) bus.InboundEvent {
	return bus.InboundEvent{ChatID: consoleChatID, SenderID: consoleSenderID, Text: text, ReceivedAt: time.Now().UTC()}
}
