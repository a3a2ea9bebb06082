package wa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ops-bot/internal/convo"
	"ops-bot/internal/metrics"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"
)

const transportName = "whatsapp"

// Config holds configuration to initialise the WhatsApp client.
type Config struct {
	StorePath string
	LogLevel  string
	Metrics   *metrics.Metrics
	// HandleTimeout bounds the processing of one inbound message.
	HandleTimeout time.Duration
}

// Dialogue is the part of the conversation engine the transport drives.
type Dialogue interface {
	HandleAction(ctx context.Context, chatID, token string) convo.Outcome
	HandleText(ctx context.Context, chatID, text string) convo.Outcome
	ExpectsText(ctx context.Context, chatID string) bool
}

// Client wraps the WhatsMeow client and associated dependencies.
type Client struct {
	client        *whatsmeow.Client
	logger        *slog.Logger
	metrics       *metrics.Metrics
	dialogue      Dialogue
	menus         *menuMemory
	handleTimeout time.Duration
}

type replyContextKey struct{}

// ReplyMetadata carries information for quoting a previous message.
type ReplyMetadata struct {
	Message *waProto.Message
	Info    types.MessageInfo
}

// WithReply attaches reply metadata to the context so outgoing messages quote the given event.
func WithReply(ctx context.Context, evt *events.Message) context.Context {
	if evt == nil || evt.Message == nil {
		return ctx
	}
	cloned, ok := proto.Clone(evt.Message).(*waProto.Message)
	if !ok {
		cloned = evt.Message
	}
	meta := &ReplyMetadata{
		Message: cloned,
		Info:    evt.Info,
	}
	return context.WithValue(ctx, replyContextKey{}, meta)
}

func replyFromContext(ctx context.Context) *ReplyMetadata {
	if ctx == nil {
		return nil
	}
	meta, _ := ctx.Value(replyContextKey{}).(*ReplyMetadata)
	return meta
}

// New creates a new WhatsApp client instance backed by an SQLite store.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.StorePath == "" {
		return nil, errors.New("store path is required")
	}

	if err := ensureDir(filepath.Dir(cfg.StorePath)); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}

	storeLogger := waLog.Stdout("whatsmeow/sqlstore", cfg.LogLevel, true)
	container, err := sqlstore.New(ctx, "sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout=10000&_pragma=foreign_keys(ON)", cfg.StorePath), storeLogger)
	if err != nil {
		return nil, fmt.Errorf("create sqlstore: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	waLogger := waLog.Stdout("whatsmeow/client", cfg.LogLevel, true)
	client := whatsmeow.NewClient(deviceStore, waLogger)

	timeout := cfg.HandleTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	wc := &Client{
		client:        client,
		logger:        logger.With("component", "wa"),
		metrics:       cfg.Metrics,
		menus:         newMenuMemory(),
		handleTimeout: timeout,
	}
	client.AddEventHandler(wc.handleEvent)

	return wc, nil
}

// SetDialogue registers the engine that answers inbound messages.
func (c *Client) SetDialogue(d Dialogue) {
	c.dialogue = d
}

// Start connects the client and handles login/QR pairing flow.
func (c *Client) Start(ctx context.Context) error {
	if c.client.Store.ID == nil {
		c.logger.Info("pairing required, waiting for QR scan")
		qrChan, err := c.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get qr channel: %w", err)
		}

		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					c.logger.Info("scan the QR code with WhatsApp", "qr", evt.Code)
				} else {
					c.logger.Info("pairing event received", "event", evt.Event)
				}
			}
		}()
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("connect wa client: %w", err)
	}

	c.logger.Info("whatsapp client connected")
	return nil
}

// Close disconnects the WhatsApp client.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Disconnect()
	}
}

func (c *Client) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		c.handleMessage(v)
	case *events.Connected:
		c.logger.Info("device connected")
	case *events.Disconnected:
		c.logger.Warn("device disconnected")
	}
}

func (c *Client) handleMessage(evt *events.Message) {
	msg := evt.Message
	if msg == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}

	var text string
	switch {
	case msg.GetConversation() != "":
		text = msg.GetConversation()
	case msg.ExtendedTextMessage != nil:
		text = msg.GetExtendedTextMessage().GetText()
	default:
		c.logger.Debug("ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	if c.dialogue == nil {
		return
	}
	go c.dispatch(evt, text)
}

// dispatch runs one message through the engine and sends the answer.
func (c *Client) dispatch(evt *events.Message, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.handleTimeout)
	defer cancel()

	chat := evt.Info.Chat.ToNonAD()
	chatID := chat.String()

	out := c.answer(ctx, chatID, text)
	switch {
	case out.Reply != nil:
		err := c.SendText(ctx, chat, renderReply(out.Reply))
		c.logSendError(chatID, err)
	case out.Notice != "":
		err := c.SendText(WithReply(ctx, evt), chat, out.Notice)
		c.logSendError(chatID, err)
	}
}

// answer routes text to the engine. A number answers the last menu unless
// the current step is waiting for typed input, so "3" typed at a quantity
// prompt stays a quantity.
func (c *Client) answer(ctx context.Context, chatID, text string) convo.Outcome {
	var out convo.Outcome
	if token, ok := c.menus.resolve(chatID, text); ok && !c.dialogue.ExpectsText(ctx, chatID) {
		c.logger.Debug("menu choice", "chat_id", chatID, "token", token)
		out = c.dialogue.HandleAction(ctx, chatID, token)
	} else {
		out = c.dialogue.HandleText(ctx, chatID, text)
	}
	if out.Reply != nil {
		c.menus.remember(chatID, out.Reply.Flatten())
	}
	return out
}

func (c *Client) logSendError(chatID string, err error) {
	if err == nil {
		return
	}
	c.logger.Error("send reply failed", "chat_id", chatID, "error", err)
	if c.metrics != nil {
		c.metrics.Errors.WithLabelValues("wa").Inc()
	}
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

// SendText sends a text message to the specified JID.
func (c *Client) SendText(ctx context.Context, to types.JID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	reply := replyFromContext(ctx)
	var message *waProto.Message
	if reply != nil && reply.Message != nil {
		contextInfo := &waProto.ContextInfo{
			StanzaID:      proto.String(string(reply.Info.ID)),
			Participant:   proto.String(reply.Info.Sender.ToNonAD().String()),
			RemoteJID:     proto.String(reply.Info.Chat.String()),
			QuotedMessage: reply.Message,
			QuotedType:    waProto.ContextInfo_EXPLICIT.Enum(),
		}
		message = &waProto.Message{
			ExtendedTextMessage: &waProto.ExtendedTextMessage{
				Text:        proto.String(text),
				ContextInfo: contextInfo,
			},
		}
	} else {
		message = &waProto.Message{
			Conversation: proto.String(text),
		}
	}
	_, err := c.client.SendMessage(ctx, to, message)
	if err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	if c.metrics != nil {
		c.metrics.OutgoingReplies.WithLabelValues(transportName).Inc()
	}
	return nil
}
