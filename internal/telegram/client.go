// Package telegram delivers conversation replies over the Telegram Bot API
// with inline keyboards, using long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ops-bot/internal/convo"
	"ops-bot/internal/metrics"
)

const transportName = "telegram"

// Dialogue is the part of the conversation engine the transport drives.
type Dialogue interface {
	HandleAction(ctx context.Context, chatID, token string) convo.Outcome
	HandleText(ctx context.Context, chatID, text string) convo.Outcome
}

// botAPI is the subset of *tgbotapi.BotAPI the client uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Config configures the Telegram client.
type Config struct {
	Token         string
	PollTimeout   int
	HandleTimeout time.Duration
	Metrics       *metrics.Metrics
}

// Client runs the long-polling loop and routes updates to the dialogue.
type Client struct {
	bot           botAPI
	dialogue      Dialogue
	logger        *slog.Logger
	metrics       *metrics.Metrics
	pollTimeout   int
	handleTimeout time.Duration
	wg            sync.WaitGroup
}

// New authenticates against the Bot API.
func New(cfg Config, dialogue Dialogue, logger *slog.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	c := newClient(bot, cfg, dialogue, logger)
	c.logger.Info("telegram bot authorized", "username", bot.Self.UserName)
	return c, nil
}

func newClient(bot botAPI, cfg Config, dialogue Dialogue, logger *slog.Logger) *Client {
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 60
	}
	handleTimeout := cfg.HandleTimeout
	if handleTimeout <= 0 {
		handleTimeout = 30 * time.Second
	}
	return &Client{
		bot:           bot,
		dialogue:      dialogue,
		logger:        logger.With("component", "telegram"),
		metrics:       cfg.Metrics,
		pollTimeout:   pollTimeout,
		handleTimeout: handleTimeout,
	}
}

// Run polls for updates until ctx is cancelled. Each update is handled on
// its own goroutine; the engine serializes events of the same chat.
func (c *Client) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout
	updates := c.bot.GetUpdatesChan(u)
	c.logger.Info("telegram polling started")

	defer func() {
		c.bot.StopReceivingUpdates()
		c.wg.Wait()
		c.logger.Info("telegram polling stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.handleUpdate(ctx, update)
			}()
		}
	}
}

func (c *Client) handleUpdate(parent context.Context, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(parent, c.handleTimeout)
	defer cancel()

	switch {
	case update.CallbackQuery != nil:
		c.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Chat != nil:
		c.handleMessage(ctx, update.Message)
	}
}

func (c *Client) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Text == "" {
		return
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	out := c.dialogue.HandleText(ctx, chatID, msg.Text)

	switch {
	case out.Reply != nil:
		c.send(chatID, c.newMessage(msg.Chat.ID, out.Reply))
	case out.Notice != "":
		c.send(chatID, tgbotapi.NewMessage(msg.Chat.ID, out.Notice))
	}
}

// handleCallback acknowledges the button press with the notice and edits the
// message the button belonged to, so paging and steps update in place.
func (c *Client) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	// Telegram keeps the button spinning until the callback is answered.
	c.ack(q.ID, "")
	if q.Message == nil || q.Message.Chat == nil {
		return
	}

	chat := q.Message.Chat.ID
	chatID := strconv.FormatInt(chat, 10)
	out := c.dialogue.HandleAction(ctx, chatID, q.Data)
	if out.Reply == nil {
		if out.Notice != "" {
			c.send(chatID, tgbotapi.NewMessage(chat, out.Notice))
		}
		return
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chat, q.Message.MessageID, out.Reply.Text, keyboard(out.Reply))
	if _, err := c.bot.Send(edit); err != nil {
		if isNotModified(err) {
			return
		}
		c.logger.Warn("edit message failed, sending new one", "chat_id", chatID, "error", err)
		c.send(chatID, c.newMessage(chat, out.Reply))
		return
	}
	c.countReply()
}

func (c *Client) ack(callbackID, notice string) {
	if _, err := c.bot.Request(tgbotapi.NewCallback(callbackID, notice)); err != nil {
		c.logger.Warn("answer callback failed", "error", err)
	}
}

func (c *Client) newMessage(chat int64, r *convo.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chat, r.Text)
	if len(r.Actions) > 0 {
		msg.ReplyMarkup = keyboard(r)
	}
	return msg
}

func (c *Client) send(chatID string, msg tgbotapi.Chattable) {
	if _, err := c.bot.Send(msg); err != nil {
		c.logger.Error("send reply failed", "chat_id", chatID, "error", err)
		if c.metrics != nil {
			c.metrics.Errors.WithLabelValues(transportName).Inc()
		}
		return
	}
	c.countReply()
}

func (c *Client) countReply() {
	if c.metrics != nil {
		c.metrics.OutgoingReplies.WithLabelValues(transportName).Inc()
	}
}

// keyboard maps action rows to inline keyboard rows. Tokens are already
// within Telegram's 64-byte callback data limit.
func keyboard(r *convo.Reply) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(r.Actions))
	for _, row := range r.Actions {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, a := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Token))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
