// Package message defines the canonical, channel-agnostic message representation.
package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Type tags the shape of a message's content.
type Type string

const (
	TypeText       Type = "text"
	TypeQuickReply Type = "quick-reply"
	TypeMenu       Type = "menu"
)

func (t Type) String() string {
	return string(t)
}

var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrInvalidContent = errors.New("invalid message content")
)

// Message is a tagged union: Content holds the JSON encoding of the shape registered for Type.
type Message struct {
	Type    Type            `json:"type"`
	Content json.RawMessage `json:"content"`
}

// QuickReply is a prompt with a short list of suggested answers.
type QuickReply struct {
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Option is one suggested answer of a quick reply.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Menu is a prompt with a browsable list of items.
type Menu struct {
	Text   string     `json:"text"`
	Button string     `json:"button,omitempty"`
	Items  []MenuItem `json:"items"`
}

// MenuItem is one entry of a menu.
type MenuItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// canonicalizer is implemented by content shapes whose nil slices encode as empty arrays.
type canonicalizer interface {
	canonical() any
}

func (q QuickReply) canonical() any {
	if q.Options == nil {
		q.Options = []Option{}
	}
	return q
}

func (m Menu) canonical() any {
	if m.Items == nil {
		m.Items = []MenuItem{}
	}
	return m
}

// New encodes content and validates it against the schema registered for typ. Nil option and
// item lists are encoded as empty arrays.
func New[T any](typ Type, content T) (Message, error) {
	var value any = content
	if c, ok := value.(canonicalizer); ok {
		value = c.canonical()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s content: %w", typ, err)
	}
	msg := Message{Type: typ, Content: raw}
	if err := Validate(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Text builds a text message. Text content always validates.
func Text(text string) Message {
	raw, _ := json.Marshal(text)
	return Message{Type: TypeText, Content: raw}
}

// Decode unmarshals the content of msg into T.
func Decode[T any](msg Message) (T, error) {
	var out T
	if len(bytes.TrimSpace(msg.Content)) == 0 {
		return out, fmt.Errorf("%w: %s content is empty", ErrInvalidContent, msg.Type)
	}
	if err := json.Unmarshal(msg.Content, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrInvalidContent, msg.Type, err)
	}
	return out, nil
}

// Is reports whether msg carries the given type.
func (m Message) Is(typ Type) bool {
	return m.Type == typ
}

// PlainText returns the human readable text of msg: the text itself, or the prompt of a
// quick reply or menu.
func (m Message) PlainText() string {
	switch m.Type {
	case TypeText:
		text, err := Decode[string](m)
		if err != nil {
			return ""
		}
		return text
	case TypeQuickReply:
		qr, err := Decode[QuickReply](m)
		if err != nil {
			return ""
		}
		return qr.Text
	case TypeMenu:
		menu, err := Decode[Menu](m)
		if err != nil {
			return ""
		}
		return menu.Text
	default:
		return ""
	}
}

// Parse decodes a canonical message from raw JSON and validates it.
func Parse(raw []byte) (Message, error) {
	var msg Message
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	msg.Type = Type(strings.TrimSpace(string(msg.Type)))
	if err := Validate(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
