// Package chatwoot implements the Chatwoot business-chat webhook channel and the API client
// shared with the conversation mirror.
package chatwoot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/memohai/msgbridge/internal/channel"
	"github.com/memohai/msgbridge/internal/channel/adapters/adapterutil"
	"github.com/memohai/msgbridge/internal/identity"
	"github.com/memohai/msgbridge/internal/message"
	"github.com/memohai/msgbridge/internal/storage"
)

// ID is the channel identifier.
const ID = "chatwoot"

// Per-user keys holding Chatwoot correlators.
const (
	KeyConversation = "#chatwoot-conversation"
	KeyContact      = "#chatwoot-contact"
)

// EventMessageReceived is tracked for every delivered inbound message.
const EventMessageReceived = "message_received"

// Config configures the Chatwoot channel.
type Config struct {
	UserAPIKey string
	BaseURL    string
	// AccountID and InboxID, when set, drop webhooks of other accounts and inboxes.
	AccountID int64
	InboxID   int64
	// VerifyToken enables the GET subscription handshake.
	VerifyToken string
	HTTPClient  *http.Client
	Limiter     *channel.Limiter
}

// Channel is the Chatwoot webhook channel.
type Channel struct {
	cfg    Config
	store  storage.Store
	client *Client
	logger *slog.Logger
}

var _ channel.Channel = (*Channel)(nil)

func New(log *slog.Logger, store storage.Store, cfg Config) (*Channel, error) {
	if strings.TrimSpace(cfg.UserAPIKey) == "" {
		return nil, errors.New("chatwoot: user api key is required")
	}
	if store == nil {
		return nil, errors.New("chatwoot: store is required")
	}
	log = adapterutil.Logger(log, ID)
	return &Channel{
		cfg:    cfg,
		store:  store,
		client: NewClient(log, cfg.BaseURL, cfg.UserAPIKey, cfg.HTTPClient),
		logger: log,
	}, nil
}

func (c *Channel) ID() string {
	return ID
}

func (c *Channel) Receive(ctx context.Context, r *http.Request) channel.Result {
	if r.Method == http.MethodGet && c.cfg.VerifyToken != "" {
		return channel.Respond(channel.VerifySubscription(r, c.cfg.VerifyToken))
	}
	if r.Method != http.MethodPost {
		return channel.Respond(channel.Text(http.StatusMethodNotAllowed, "Invalid method"))
	}
	body, err := adapterutil.ReadBody(r)
	if err != nil {
		c.logger.Debug("read webhook body failed", slog.Any("error", err))
		return channel.Respond(channel.Empty())
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		c.logger.Debug("malformed webhook", slog.Any("error", err))
		return channel.Respond(channel.Empty())
	}
	if reason := c.filter(p); reason != "" {
		c.logger.Debug("webhook ignored", slog.String("reason", reason), slog.String("event", p.Event))
		return channel.Respond(channel.Empty())
	}
	msg, ok, err := Converters.FromProvider(p)
	if err != nil || !ok {
		c.logger.Debug("unsupported message", slog.String("content_type", p.ContentType), slog.Any("error", err))
		return channel.Respond(channel.Empty())
	}

	authorID := strconv.FormatInt(p.Sender.ID, 10)
	userID := identity.UserID(ID, authorID)
	photo := p.Sender.Avatar
	if photo == "" {
		photo = p.Sender.Thumbnail
	}
	if _, err := c.store.MergeUser(ctx, userID, storage.Profile{
		Name:        storage.String(p.Sender.Name),
		Email:       storage.String(p.Sender.Email),
		PhoneNumber: storage.String(p.Sender.PhoneNumber),
		PhotoURI:    storage.String(photo),
		Metadata:    adapterutil.StringMetadata(p.Sender.AdditionalAttributes, p.Sender.CustomAttributes),
	}); err != nil {
		c.logger.Error("merge user failed", slog.String("user_id", userID), slog.Any("error", err))
		return channel.Respond(channel.Text(http.StatusInternalServerError, "storage unavailable"))
	}
	conversationID := strconv.FormatInt(p.Conversation.ID, 10)
	if err := c.store.SetKV(ctx, userID, KeyConversation, conversationID); err != nil {
		c.logger.Error("store conversation failed", slog.String("user_id", userID), slog.Any("error", err))
		return channel.Respond(channel.Text(http.StatusInternalServerError, "storage unavailable"))
	}
	if err := c.store.Track(ctx, userID, EventMessageReceived, map[string]any{
		"channel":         ID,
		"type":            string(msg.Type),
		"conversation_id": conversationID,
	}); err != nil {
		c.logger.Warn("track inbound message failed", slog.String("user_id", userID), slog.Any("error", err))
	}
	c.logger.Info("inbound message",
		slog.String("user_id", userID),
		slog.String("conversation_id", conversationID),
		slog.String("text", adapterutil.SummarizeText(msg.PlainText())),
	)
	return channel.Deliver(channel.Inbound{AuthorID: authorID, Message: msg})
}

// filter returns why p is not an inbound message for this channel, or "".
func (c *Channel) filter(p Payload) string {
	switch {
	case p.Event != EventMessageCreated:
		return "not message_created"
	case p.MessageType != MessageTypeIncoming:
		return "not incoming"
	case p.ContentType != ContentTypeText:
		return "not text"
	case c.cfg.AccountID != 0 && p.Account.ID != c.cfg.AccountID:
		return "other account"
	case c.cfg.InboxID != 0 && p.Conversation.InboxID != c.cfg.InboxID:
		return "other inbox"
	case p.Sender == nil || p.Sender.ID == 0:
		return "no sender"
	case p.Conversation.ID == 0:
		return "no conversation"
	}
	return ""
}

// Send replies to the Chatwoot contact recipientID in their last known conversation.
func (c *Channel) Send(ctx context.Context, recipientID string, msg message.Message) error {
	userID := identity.UserID(ID, recipientID)
	conversationID, err := c.store.GetKV(ctx, userID, KeyConversation)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && conversationID == "") {
		return fmt.Errorf("chatwoot: %w %s", channel.ErrNoConversation, userID)
	}
	if err != nil {
		return fmt.Errorf("chatwoot: load conversation: %w", err)
	}
	out, err := Converters.ToProvider(msg)
	if err != nil {
		return fmt.Errorf("chatwoot: %w", err)
	}
	if err := c.cfg.Limiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.client.CreateMessage(ctx, c.cfg.AccountID, conversationID, out); err != nil {
		c.logger.Error("send failed", slog.String("conversation_id", conversationID), slog.Any("error", err))
		return err
	}
	c.logger.Info("message sent", slog.String("conversation_id", conversationID), slog.String("type", string(msg.Type)))
	return nil
}
