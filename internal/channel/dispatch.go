package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/memohai/msgbridge/internal/logger"
)

// Dispatch runs one inbound request through ch. A delivered message is handed to handler and
// acknowledged only after the handler has returned.
func Dispatch(ctx context.Context, ch Channel, r *http.Request, handler MessageHandler) *Response {
	log := logger.FromContext(ctx).With(slog.String("channel", ch.ID()))
	result := ch.Receive(ctx, r)
	switch result.Kind() {
	case ResultDeliver:
		in := result.Inbound()
		if err := handler(ctx, in.AuthorID, in.Message, ch); err != nil {
			log.Error("handle inbound message failed", slog.String("author", in.AuthorID), slog.Any("error", err))
			return JSON(http.StatusInternalServerError, map[string]string{
				"error": fmt.Sprintf("Error receiving message: %v", err),
			})
		}
		return Empty()
	case ResultDefer:
		ex, ok := ch.(Exchanger)
		if !ok {
			log.Error("channel deferred a request but cannot exchange")
			return Text(http.StatusInternalServerError, "channel cannot handle this request")
		}
		return ex.Exchange(ctx, r, handler)
	default:
		return result.Response()
	}
}
