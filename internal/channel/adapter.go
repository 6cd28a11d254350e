// Package channel defines the contract every messaging surface implements, the converter
// registry that maps canonical messages to provider payloads, and request dispatch.
package channel

import (
	"context"
	"net/http"

	"github.com/memohai/msgbridge/internal/message"
)

// Channel binds one external messaging surface to the canonical message model.
//
// Receive never fails: malformed or uninteresting input resolves to a Response.
// Send reports conversion errors (ErrNoConverter) and delivery errors (*DeliveryError)
// explicitly; it never drops a message silently unless the channel documents it.
type Channel interface {
	ID() string
	Receive(ctx context.Context, r *http.Request) Result
	Send(ctx context.Context, recipientID string, msg message.Message) error
}

// Exchanger is implemented by channels that answer inside the same HTTP exchange that
// carried the inbound message. Receive returns Defer for such requests.
type Exchanger interface {
	Exchange(ctx context.Context, r *http.Request, handler MessageHandler) *Response
}

// MessageHandler consumes a canonical inbound message. It may call ch.Send any number of
// times before returning.
type MessageHandler func(ctx context.Context, authorID string, msg message.Message, ch Channel) error

// Inbound is a normalized message handed to the MessageHandler.
type Inbound struct {
	AuthorID string
	Message  message.Message
}
