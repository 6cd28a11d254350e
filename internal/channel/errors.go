package channel

import (
	"errors"
	"fmt"
)

var (
	// ErrNoConverter reports an outbound message whose type has no converter on the channel.
	ErrNoConverter = errors.New("no converter for message type")
	// ErrNoConversation reports a reply to a user with no stored provider conversation.
	ErrNoConversation  = errors.New("no active conversation for user")
	ErrChannelNotFound = errors.New("channel not found")
)

// DeliveryError is a non-success response from a provider's message endpoint.
type DeliveryError struct {
	Channel string
	Status  int
	Body    string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: status %d: %s", e.Channel, e.Status, e.Body)
}
