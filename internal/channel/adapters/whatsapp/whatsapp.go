// Package whatsapp implements the WhatsApp Cloud API webhook channel.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/memohai/msgbridge/internal/channel"
	"github.com/memohai/msgbridge/internal/channel/adapters/adapterutil"
	"github.com/memohai/msgbridge/internal/identity"
	"github.com/memohai/msgbridge/internal/message"
	"github.com/memohai/msgbridge/internal/storage"
)

// ID is the channel identifier.
const ID = "whatsapp"

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v15.0"
)

// EventMessageReceived is tracked for every delivered inbound message.
const EventMessageReceived = "message_received"

// Config configures the WhatsApp channel.
type Config struct {
	// NumberID is the business phone number id; webhooks for other numbers are ignored.
	NumberID    string
	Token       string
	VerifyToken string
	BaseURL     string
	APIVersion  string
	HTTPClient  *http.Client
	Limiter     *channel.Limiter
}

// Channel is the WhatsApp webhook channel.
type Channel struct {
	cfg    Config
	store  storage.Store
	client *http.Client
	logger *slog.Logger
}

var _ channel.Channel = (*Channel)(nil)

func New(log *slog.Logger, store storage.Store, cfg Config) (*Channel, error) {
	if strings.TrimSpace(cfg.NumberID) == "" {
		return nil, errors.New("whatsapp: number id is required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("whatsapp: token is required")
	}
	if store == nil {
		return nil, errors.New("whatsapp: store is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	client := cfg.HTTPClient
	if client == nil {
		client = adapterutil.NewHTTPClient(0)
	}
	return &Channel{
		cfg:    cfg,
		store:  store,
		client: client,
		logger: adapterutil.Logger(log, ID),
	}, nil
}

func (c *Channel) ID() string {
	return ID
}

// Receive handles the subscription handshake (GET) and message webhooks (POST).
func (c *Channel) Receive(ctx context.Context, r *http.Request) channel.Result {
	switch r.Method {
	case http.MethodGet:
		resp := channel.VerifySubscription(r, c.cfg.VerifyToken)
		if resp.Status != http.StatusOK {
			c.logger.Debug("invalid verification request", slog.String("mode", r.URL.Query().Get(channel.VerifyModeParam)))
		}
		return channel.Respond(resp)
	case http.MethodPost:
		return c.receiveWebhook(ctx, r)
	default:
		return channel.Respond(channel.Text(http.StatusMethodNotAllowed, "Invalid method"))
	}
}

func (c *Channel) receiveWebhook(ctx context.Context, r *http.Request) channel.Result {
	body, err := adapterutil.ReadBody(r)
	if err != nil {
		c.logger.Debug("read webhook body failed", slog.Any("error", err))
		return channel.Respond(channel.Empty())
	}
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.Debug("malformed webhook", slog.Any("error", err))
		return channel.Respond(channel.Empty())
	}
	if len(env.Entry) == 0 || len(env.Entry[0].Changes) == 0 {
		c.logger.Debug("webhook without changes")
		return channel.Respond(channel.Empty())
	}
	value := env.Entry[0].Changes[0].Value
	if value.Metadata.PhoneNumberID != c.cfg.NumberID {
		c.logger.Debug("message for another number", slog.String("phone_number_id", value.Metadata.PhoneNumberID))
		return channel.Respond(channel.Empty())
	}
	// Status callbacks carry no message.
	if len(value.Messages) == 0 {
		return channel.Respond(channel.Empty())
	}
	waMessage := value.Messages[0]
	msg, ok, err := Converters.FromProvider(waMessage)
	if err != nil || !ok {
		c.logger.Debug("unsupported message", slog.String("type", waMessage.Type), slog.Any("error", err))
		return channel.Respond(channel.Empty())
	}

	waID, name := waMessage.From, ""
	if len(value.Contacts) > 0 {
		if value.Contacts[0].WaID != "" {
			waID = value.Contacts[0].WaID
		}
		name = value.Contacts[0].Profile.Name
	}
	if waID == "" {
		c.logger.Debug("message without sender")
		return channel.Respond(channel.Empty())
	}

	userID := identity.UserID(ID, waID)
	if _, err := c.store.MergeUser(ctx, userID, storage.Profile{
		Name:        storage.String(name),
		PhoneNumber: storage.String(waID),
	}); err != nil {
		c.logger.Error("merge user failed", slog.String("user_id", userID), slog.Any("error", err))
		return channel.Respond(channel.Text(http.StatusInternalServerError, "storage unavailable"))
	}
	if err := c.store.Track(ctx, userID, EventMessageReceived, map[string]any{
		"channel":    ID,
		"type":       string(msg.Type),
		"message_id": waMessage.ID,
	}); err != nil {
		c.logger.Warn("track inbound message failed", slog.String("user_id", userID), slog.Any("error", err))
	}
	c.logger.Info("inbound message",
		slog.String("user_id", userID),
		slog.String("type", string(msg.Type)),
		slog.String("text", adapterutil.SummarizeText(msg.PlainText())),
	)
	return channel.Deliver(channel.Inbound{AuthorID: waID, Message: msg})
}

// Send delivers msg to the WhatsApp id recipientID in a single call.
func (c *Channel) Send(ctx context.Context, recipientID string, msg message.Message) error {
	waMessage, err := Converters.ToProvider(msg)
	if err != nil {
		return fmt.Errorf("whatsapp: %w", err)
	}
	if err := c.cfg.Limiter.Wait(ctx); err != nil {
		return err
	}
	req := sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipientID,
		Message:          waMessage,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.Token)
	var resp sendResponse
	if err := adapterutil.PostJSON(ctx, c.client, c.logger, ID, c.messagesURL(), header, req, &resp); err != nil {
		c.logger.Error("send failed", slog.String("to", recipientID), slog.Any("error", err))
		return err
	}
	c.logger.Info("message sent", slog.String("to", recipientID), slog.String("type", string(msg.Type)))
	return nil
}

func (c *Channel) messagesURL() string {
	return fmt.Sprintf("%s/%s/%s/messages", c.cfg.BaseURL, c.cfg.APIVersion, c.cfg.NumberID)
}
