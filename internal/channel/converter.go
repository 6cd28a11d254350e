package channel

import (
	"fmt"

	"github.com/memohai/msgbridge/internal/message"
)

// Converter maps one canonical message type to and from a provider wire format.
// In is the provider's inbound payload, Out the body the provider expects on delivery.
// A nil Recognize, Inbound or Outbound means the converter does not take part in that direction.
type Converter[In, Out any] struct {
	Type      message.Type
	Recognize func(In) bool
	Inbound   func(In) (message.Message, error)
	Outbound  func(message.Message) (Out, error)
}

// NewConverter builds a converter whose inbound and outbound functions work on the typed
// content T instead of raw messages. Any of recognize, in and out may be nil.
func NewConverter[T, In, Out any](
	typ message.Type,
	recognize func(In) bool,
	in func(In) (T, error),
	out func(T) (Out, error),
) Converter[In, Out] {
	c := Converter[In, Out]{Type: typ, Recognize: recognize}
	if in != nil {
		c.Inbound = func(payload In) (message.Message, error) {
			content, err := in(payload)
			if err != nil {
				return message.Message{}, err
			}
			return message.New(typ, content)
		}
	}
	if out != nil {
		c.Outbound = func(msg message.Message) (Out, error) {
			content, err := message.Decode[T](msg)
			if err != nil {
				var zero Out
				return zero, err
			}
			return out(content)
		}
	}
	return c
}

// Converters is an ordered converter list. Order is priority: the first match wins.
type Converters[In, Out any] []Converter[In, Out]

// ToProvider renders msg with the first converter declaring msg.Type and an outbound function.
// No such converter is ErrNoConverter; a message failing validation is never rendered.
func (cs Converters[In, Out]) ToProvider(msg message.Message) (Out, error) {
	var zero Out
	for _, c := range cs {
		if c.Type != msg.Type || c.Outbound == nil {
			continue
		}
		if err := message.Validate(msg); err != nil {
			return zero, err
		}
		return c.Outbound(msg)
	}
	return zero, fmt.Errorf("%w for %q", ErrNoConverter, msg.Type)
}

// FromProvider converts payload with the first converter that recognizes it and has an inbound
// function. ok is false when no converter recognizes the payload.
func (cs Converters[In, Out]) FromProvider(payload In) (msg message.Message, ok bool, err error) {
	for _, c := range cs {
		if c.Recognize == nil || c.Inbound == nil || !c.Recognize(payload) {
			continue
		}
		msg, err = c.Inbound(payload)
		if err != nil {
			return message.Message{}, true, fmt.Errorf("convert inbound %s: %w", c.Type, err)
		}
		return msg, true, nil
	}
	return message.Message{}, false, nil
}

// Types lists the canonical types the list can render, in priority order without duplicates.
func (cs Converters[In, Out]) Types() []message.Type {
	seen := map[message.Type]struct{}{}
	types := make([]message.Type, 0, len(cs))
	for _, c := range cs {
		if c.Outbound == nil {
			continue
		}
		if _, ok := seen[c.Type]; ok {
			continue
		}
		seen[c.Type] = struct{}{}
		types = append(types, c.Type)
	}
	return types
}
