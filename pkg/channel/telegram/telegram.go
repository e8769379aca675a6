package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chatrelay/pkg/bus"
	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"

// Notifier sends replies through the Telegram Bot API.
type Notifier struct {
	bot *telego.Bot
	log *slog.Logger
}

// NewNotifier validates Telegram configuration and constructs the bot client
// once. httpClient is shared with the completion provider; nil keeps telego's
// default transport.
func NewNotifier(cfg config.TelegramConfig, httpClient *http.Client, log *slog.Logger) (*Notifier, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "channel.telegram")

	opts := []telego.BotOption{telego.WithLogger(botLogger{log: log})}
	if apiBase := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"); apiBase != "" {
		opts = append(opts, telego.WithAPIServer(apiBase))
	}
	if httpClient != nil {
		opts = append(opts, telego.WithHTTPClient(httpClient))
	}

	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return &Notifier{bot: bot, log: log}, nil
}

// Name returns the channel identifier used in logs.
func (n *Notifier) Name() string {
	return channelName
}

// Notify makes exactly one sendMessage call. There is no retry.
func (n *Notifier) Notify(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := parseChatID(msg.ChatID)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	if _, err := n.bot.SendMessage(ctx, tu.Message(chatID, msg.Text)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	n.log.Debug("Sent message",
		"chat_id", msg.ChatID,
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"content", logger.Preview(msg.Text),
	)
	return nil
}

// Bot exposes the underlying client for operational commands.
func (n *Notifier) Bot() *telego.Bot {
	return n.bot
}

// DecodeUpdate turns a webhook body into an InboundEvent. It never fails:
// anything it cannot read becomes an event without a chat id, and a missing
// text field becomes empty text.
func DecodeUpdate(body []byte) bus.InboundEvent {
	event := bus.InboundEvent{ReceivedAt: time.Now().UTC()}

	var update telego.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return decodeLoose(body, event)
	}

	event.UpdateID = update.UpdateID

	message := update.Message
	if message == nil || message.Chat.ID == 0 {
		return event
	}

	event.ChatID = strconv.FormatInt(message.Chat.ID, 10)
	event.Text = message.Text
	if message.From != nil {
		event.SenderID = strconv.FormatInt(message.From.ID, 10)
	}

	return event
}

// looseUpdate keeps each field raw so one bad field cannot hide the others.
type looseUpdate struct {
	UpdateID json.RawMessage `json:"update_id"`
	Message  *struct {
		Chat json.RawMessage `json:"chat"`
		From json.RawMessage `json:"from"`
		Text json.RawMessage `json:"text"`
	} `json:"message"`
}

type idOnly struct {
	ID int64 `json:"id"`
}

// decodeLoose reads the fields of an update the strict pass rejected one at a
// time. A chat id that still cannot be read leaves the event without a chat.
func decodeLoose(body []byte, event bus.InboundEvent) bus.InboundEvent {
	var update looseUpdate
	if err := json.Unmarshal(body, &update); err != nil || update.Message == nil {
		return event
	}

	var updateID int
	if json.Unmarshal(update.UpdateID, &updateID) == nil {
		event.UpdateID = updateID
	}

	var chat idOnly
	if json.Unmarshal(update.Message.Chat, &chat) != nil || chat.ID == 0 {
		return event
	}
	event.ChatID = strconv.FormatInt(chat.ID, 10)

	var text string
	if json.Unmarshal(update.Message.Text, &text) == nil {
		event.Text = text
	}

	var from idOnly
	if json.Unmarshal(update.Message.From, &from) == nil && from.ID != 0 {
		event.SenderID = strconv.FormatInt(from.ID, 10)
	}

	return event
}

// parseChatID maps numeric ids to tu.ID and "@channel" names to tu.Username.
func parseChatID(raw string) (telego.ChatID, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "@") && len(raw) > 1 {
		return tu.Username(raw), nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return telego.ChatID{}, fmt.Errorf("invalid telegram chat id %q", raw)
	}

	return tu.ID(id), nil
}

// botLogger routes telego's own diagnostics into slog.
type botLogger struct {
	log *slog.Logger
}

func (l botLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l botLogger) Errorf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}
