package whatsapp

import (
	"fmt"

	"github.com/memohai/msgbridge/internal/channel"
	"github.com/memohai/msgbridge/internal/message"
)

// Limits of interactive messages enforced by the Cloud API.
const (
	maxButtons  = 3
	maxListRows = 10
)

const (
	typeText        = "text"
	typeButton      = "button"
	typeInteractive = "interactive"

	interactiveButton = "button"
	interactiveList   = "list"
)

// Converters is the WhatsApp converter list in priority order.
var Converters = channel.Converters[Message, Message]{
	textConverter,
	quickReplyConverter,
	menuConverter,
}

var textConverter = channel.NewConverter(message.TypeText,
	func(m Message) bool {
		switch m.Type {
		case typeText:
			return m.Text != nil
		case typeButton:
			return m.Button != nil
		case typeInteractive:
			return m.Interactive != nil &&
				(m.Interactive.ButtonReply != nil || m.Interactive.ListReply != nil)
		}
		return false
	},
	func(m Message) (string, error) {
		switch {
		case m.Text != nil:
			return m.Text.Body, nil
		case m.Button != nil:
			return m.Button.Text, nil
		case m.Interactive.ButtonReply != nil:
			return m.Interactive.ButtonReply.Title, nil
		default:
			return m.Interactive.ListReply.Title, nil
		}
	},
	func(text string) (Message, error) {
		return Message{Type: typeText, Text: &Text{Body: text}}, nil
	},
)

var quickReplyConverter = channel.NewConverter(message.TypeQuickReply,
	func(m Message) bool {
		return isInteractive(m, interactiveButton)
	},
	func(m Message) (message.QuickReply, error) {
		qr := message.QuickReply{Text: bodyText(m.Interactive), Options: []message.Option{}}
		for _, b := range m.Interactive.Action.Buttons {
			qr.Options = append(qr.Options, message.Option{Value: b.Reply.ID, Label: b.Reply.Title})
		}
		return qr, nil
	},
	func(qr message.QuickReply) (Message, error) {
		if len(qr.Options) > maxButtons {
			return Message{}, fmt.Errorf("%w: whatsapp quick reply supports at most %d options, got %d", message.ErrInvalidContent, maxButtons, len(qr.Options))
		}
		buttons := make([]ActionButton, 0, len(qr.Options))
		for _, opt := range qr.Options {
			buttons = append(buttons, ActionButton{Type: "reply", Reply: Reply{ID: opt.Value, Title: opt.Label}})
		}
		return Message{
			Type: typeInteractive,
			Interactive: &Interactive{
				Type:   interactiveButton,
				Body:   &Body{Text: qr.Text},
				Action: &Action{Buttons: buttons},
			},
		}, nil
	},
)

var menuConverter = channel.NewConverter(message.TypeMenu,
	func(m Message) bool {
		return isInteractive(m, interactiveList)
	},
	func(m Message) (message.Menu, error) {
		menu := message.Menu{
			Text:   bodyText(m.Interactive),
			Button: m.Interactive.Action.Button,
			Items:  []message.MenuItem{},
		}
		for _, section := range m.Interactive.Action.Sections {
			for _, row := range section.Rows {
				menu.Items = append(menu.Items, message.MenuItem{ID: row.ID, Title: row.Title, Description: row.Description})
			}
		}
		return menu, nil
	},
	func(menu message.Menu) (Message, error) {
		if len(menu.Items) > maxListRows {
			return Message{}, fmt.Errorf("%w: whatsapp menu supports at most %d items, got %d", message.ErrInvalidContent, maxListRows, len(menu.Items))
		}
		rows := make([]ActionRow, 0, len(menu.Items))
		for _, item := range menu.Items {
			rows = append(rows, ActionRow{ID: item.ID, Title: item.Title, Description: item.Description})
		}
		return Message{
			Type: typeInteractive,
			Interactive: &Interactive{
				Type: interactiveList,
				Body: &Body{Text: menu.Text},
				Action: &Action{
					Button:   menu.Button,
					Sections: []ActionSection{{Rows: rows}},
				},
			},
		}, nil
	},
)

func isInteractive(m Message, kind string) bool {
	return m.Type == typeInteractive && m.Interactive != nil &&
		m.Interactive.Type == kind && m.Interactive.Action != nil
}

func bodyText(in *Interactive) string {
	if in.Body == nil {
		return ""
	}
	return in.Body.Text
}
