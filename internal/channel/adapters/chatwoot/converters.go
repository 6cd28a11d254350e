package chatwoot

import (
	"encoding/json"
	"fmt"

	"github.com/memohai/msgbridge/internal/channel"
	"github.com/memohai/msgbridge/internal/message"
)

// Converters is the Chatwoot converter list in priority order. Quick replies and menus are
// rendered as input_select prompts and only participate outbound.
var Converters = channel.Converters[Payload, OutgoingMessage]{
	textConverter,
	quickReplyConverter,
	menuConverter,
}

var textConverter = channel.NewConverter(message.TypeText,
	func(p Payload) bool {
		if p.ContentType != ContentTypeText {
			return false
		}
		var s string
		return json.Unmarshal(p.Content, &s) == nil
	},
	func(p Payload) (string, error) {
		var s string
		if err := json.Unmarshal(p.Content, &s); err != nil {
			return "", fmt.Errorf("decode text content: %w", err)
		}
		return s, nil
	},
	func(text string) (OutgoingMessage, error) {
		return OutgoingMessage{
			Content:     text,
			ContentType: ContentTypeText,
			MessageType: MessageTypeOutgoing,
		}, nil
	},
)

var quickReplyConverter = channel.NewConverter[message.QuickReply, Payload, OutgoingMessage](message.TypeQuickReply,
	nil,
	nil,
	func(qr message.QuickReply) (OutgoingMessage, error) {
		items := make([]SelectItem, 0, len(qr.Options))
		for _, opt := range qr.Options {
			items = append(items, SelectItem{Title: opt.Label, Value: opt.Value})
		}
		return selectMessage(qr.Text, items), nil
	},
)

var menuConverter = channel.NewConverter[message.Menu, Payload, OutgoingMessage](message.TypeMenu,
	nil,
	nil,
	func(menu message.Menu) (OutgoingMessage, error) {
		items := make([]SelectItem, 0, len(menu.Items))
		for _, item := range menu.Items {
			items = append(items, SelectItem{Title: item.Title, Value: item.ID})
		}
		return selectMessage(menu.Text, items), nil
	},
)

func selectMessage(text string, items []SelectItem) OutgoingMessage {
	return OutgoingMessage{
		Content:           text,
		ContentType:       ContentTypeInputSelect,
		ContentAttributes: &ContentAttributes{Items: items},
		MessageType:       MessageTypeOutgoing,
	}
}
