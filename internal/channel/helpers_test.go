package channel_test

import (
	"context"
	"net/http"
	"sync"

	"github.com/memohai/msgbridge/internal/channel"
	"github.com/memohai/msgbridge/internal/message"
)

// mockChannel returns a fixed Result from Receive and records sends.
type mockChannel struct {
	id     string
	result channel.Result

	mu    sync.Mutex
	sends []sent
}

type sent struct {
	recipient string
	msg       message.Message
}

func (c *mockChannel) ID() string { return c.id }

func (c *mockChannel) Receive(_ context.Context, _ *http.Request) channel.Result { return c.result }

func (c *mockChannel) Send(_ context.Context, recipientID string, msg message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, sent{recipient: recipientID, msg: msg})
	return nil
}

// exchangeChannel defers every request and answers it through Exchange.
type exchangeChannel struct {
	mockChannel
	called bool
}

func (c *exchangeChannel) Exchange(ctx context.Context, _ *http.Request, handler channel.MessageHandler) *channel.Response {
	c.called = true
	if err := handler(ctx, "author", message.Text("hi"), c); err != nil {
		return channel.Text(http.StatusInternalServerError, err.Error())
	}
	return channel.Text(http.StatusOK, "exchanged")
}
