// Package chatwoot mirrors conversations held on other channels into a Chatwoot inbox so that
// human agents can follow them.
package chatwoot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/memohai/msgbridge/internal/channel"
	cw "github.com/memohai/msgbridge/internal/channel/adapters/chatwoot"
	"github.com/memohai/msgbridge/internal/identity"
	"github.com/memohai/msgbridge/internal/message"
	"github.com/memohai/msgbridge/internal/storage"
)

// Config configures the mirror.
type Config struct {
	BaseURL    string
	APIKey     string
	AccountID  int64
	InboxID    int64
	HTTPClient *http.Client
}

// Mirror copies inbound and outbound messages to Chatwoot. Mirror failures are logged and
// never fail the exchange being mirrored.
type Mirror struct {
	cfg    Config
	store  storage.Store
	client *cw.Client
	logger *slog.Logger
}

func New(log *slog.Logger, store storage.Store, cfg Config) (*Mirror, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("chatwoot mirror: api key is required")
	}
	if cfg.AccountID <= 0 || cfg.InboxID <= 0 {
		return nil, errors.New("chatwoot mirror: account id and inbox id are required")
	}
	if store == nil {
		return nil, errors.New("chatwoot mirror: store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("plugin", "chatwoot"))
	return &Mirror{
		cfg:    cfg,
		store:  store,
		client: cw.NewClient(log, cfg.BaseURL, cfg.APIKey, cfg.HTTPClient),
		logger: log,
	}, nil
}

// WrapHandler mirrors every inbound message before calling next, and hands next a channel whose
// sends are mirrored too.
func (m *Mirror) WrapHandler(next channel.MessageHandler) channel.MessageHandler {
	return func(ctx context.Context, authorID string, msg message.Message, ch channel.Channel) error {
		ch = m.WrapChannel(ch)
		if mirroredID(ch) {
			m.mirror(ctx, ch.ID(), authorID, msg, cw.MessageTypeIncoming)
		}
		return next(ctx, authorID, msg, ch)
	}
}

// WrapChannel returns ch with successful sends mirrored. The Chatwoot channel itself and
// already wrapped channels are returned unchanged.
func (m *Mirror) WrapChannel(ch channel.Channel) channel.Channel {
	if ch == nil || !mirroredID(ch) {
		return ch
	}
	switch ch.(type) {
	case *mirrored, *mirroredExchanger:
		return ch
	}
	base := &mirrored{Channel: ch, mirror: m}
	if ex, ok := ch.(channel.Exchanger); ok {
		return &mirroredExchanger{mirrored: base, exchanger: ex}
	}
	return base
}

func mirroredID(ch channel.Channel) bool {
	return ch.ID() != cw.ID
}

type mirrored struct {
	channel.Channel
	mirror *Mirror
}

func (c *mirrored) Send(ctx context.Context, recipientID string, msg message.Message) error {
	if err := c.Channel.Send(ctx, recipientID, msg); err != nil {
		return err
	}
	c.mirror.mirror(ctx, c.ID(), recipientID, msg, cw.MessageTypeOutgoing)
	return nil
}

type mirroredExchanger struct {
	*mirrored
	exchanger channel.Exchanger
}

func (c *mirroredExchanger) Exchange(ctx context.Context, r *http.Request, handler channel.MessageHandler) *channel.Response {
	return c.exchanger.Exchange(ctx, r, handler)
}

func (m *Mirror) mirror(ctx context.Context, channelID, authorID string, msg message.Message, direction string) {
	userID := identity.UserID(channelID, authorID)
	log := m.logger.With(slog.String("channel", channelID), slog.String("user_id", userID))
	conversationID, err := m.ensureConversation(ctx, userID, authorID)
	if err != nil {
		log.Error("ensure chatwoot conversation failed", slog.Any("error", err))
		return
	}
	out := cw.OutgoingMessage{
		Content:     msg.PlainText(),
		MessageType: direction,
	}
	if err := m.client.CreateMessage(ctx, m.cfg.AccountID, conversationID, out); err != nil {
		log.Error("mirror message failed", slog.String("direction", direction), slog.Any("error", err))
	}
}

func (m *Mirror) ensureConversation(ctx context.Context, userID, authorID string) (string, error) {
	conversationID, err := m.lookup(ctx, userID, cw.KeyConversation)
	if err != nil || conversationID != "" {
		return conversationID, err
	}
	contactID, err := m.ensureContact(ctx, userID)
	if err != nil {
		return "", err
	}
	user, err := m.user(ctx, userID)
	if err != nil {
		return "", err
	}
	id, err := m.client.CreateConversation(ctx, m.cfg.AccountID, cw.NewConversation{
		SourceID:             authorID,
		InboxID:              m.cfg.InboxID,
		ContactID:            contactID,
		AdditionalAttributes: user.Metadata,
		Status:               "pending",
	})
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	conversationID = strconv.FormatInt(id, 10)
	if err := m.store.SetKV(ctx, userID, cw.KeyConversation, conversationID); err != nil {
		return "", err
	}
	return conversationID, nil
}

func (m *Mirror) ensureContact(ctx context.Context, userID string) (string, error) {
	contactID, err := m.lookup(ctx, userID, cw.KeyContact)
	if err != nil || contactID != "" {
		return contactID, err
	}
	user, err := m.user(ctx, userID)
	if err != nil {
		return "", err
	}
	id, err := m.client.CreateContact(ctx, m.cfg.AccountID, cw.NewContact{
		InboxID:              m.cfg.InboxID,
		Name:                 user.Name,
		Email:                user.Email,
		PhoneNumber:          e164(user.PhoneNumber),
		Identifier:           userID,
		AvatarURL:            user.PhotoURI,
		AdditionalAttributes: user.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("create contact: %w", err)
	}
	contactID = strconv.FormatInt(id, 10)
	if err := m.store.SetKV(ctx, userID, cw.KeyContact, contactID); err != nil {
		return "", err
	}
	return contactID, nil
}

func (m *Mirror) lookup(ctx context.Context, userID, key string) (string, error) {
	value, err := m.store.GetKV(ctx, userID, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	return value, err
}

// user returns the stored profile, or a bare user for identities never merged (web sessions).
func (m *Mirror) user(ctx context.Context, userID string) (storage.User, error) {
	user, err := m.store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.User{ID: userID}, nil
	}
	return user, err
}

func e164(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+" + phone
}
