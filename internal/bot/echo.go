// Package bot holds the default message handler used when no external behavior engine is
// wired in. It echoes text back and answers a few keywords with rich messages.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/memohai/msgbridge/internal/channel"
	"github.com/memohai/msgbridge/internal/identity"
	"github.com/memohai/msgbridge/internal/message"
	"github.com/memohai/msgbridge/internal/storage"
)

// EventMessageSent is tracked for every reply.
const EventMessageSent = "message_sent"

// Echo replies to every inbound message.
type Echo struct {
	store  storage.Store
	logger *slog.Logger
}

func NewEcho(log *slog.Logger, store storage.Store) *Echo {
	if log == nil {
		log = slog.Default()
	}
	return &Echo{store: store, logger: log.With(slog.String("service", "bot"))}
}

// Handle implements channel.MessageHandler.
func (b *Echo) Handle(ctx context.Context, authorID string, msg message.Message, ch channel.Channel) error {
	replies, err := b.reply(msg)
	if err != nil {
		return err
	}
	userID := identity.UserID(ch.ID(), authorID)
	for _, reply := range replies {
		if err := ch.Send(ctx, authorID, reply); err != nil {
			return fmt.Errorf("reply on %s: %w", ch.ID(), err)
		}
		if b.store == nil {
			continue
		}
		if err := b.store.Track(ctx, userID, EventMessageSent, map[string]any{
			"channel": ch.ID(),
			"type":    string(reply.Type),
		}); err != nil {
			b.logger.Warn("track reply failed", slog.String("user_id", userID), slog.Any("error", err))
		}
	}
	return nil
}

func (b *Echo) reply(msg message.Message) ([]message.Message, error) {
	text := strings.TrimSpace(msg.PlainText())
	switch strings.ToLower(text) {
	case "menu":
		menu, err := message.New(message.TypeMenu, message.Menu{
			Text:   "What would you like to do?",
			Button: "Options",
			Items: []message.MenuItem{
				{ID: "echo", Title: "Echo", Description: "Repeat what I say"},
				{ID: "help", Title: "Help"},
			},
		})
		return []message.Message{menu}, err
	case "help":
		qr, err := message.New(message.TypeQuickReply, message.QuickReply{
			Text:    "Send any text and I will repeat it. Want the menu?",
			Options: []message.Option{{Value: "menu", Label: "Menu"}, {Value: "no", Label: "No thanks"}},
		})
		return []message.Message{qr}, err
	case "":
		return nil, nil
	default:
		return []message.Message{message.Text(text)}, nil
	}
}
