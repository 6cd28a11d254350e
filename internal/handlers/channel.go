package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/msgbridge/internal/channel"
	"github.com/memohai/msgbridge/internal/logger"
)

// ChannelHandler mounts every registered channel at /channels/:channel_id.
type ChannelHandler struct {
	registry *channel.Registry
	handler  channel.MessageHandler
	logger   *slog.Logger
}

func NewChannelHandler(log *slog.Logger, registry *channel.Registry, handler channel.MessageHandler) *ChannelHandler {
	return &ChannelHandler{
		registry: registry,
		handler:  handler,
		logger:   log.With(slog.String("handler", "channel")),
	}
}

func (h *ChannelHandler) Register(e *echo.Echo) {
	e.Any("/channels/:channel_id", h.Receive)
}

// Receive godoc
// @Summary Channel webhook and exchange endpoint
// @Description Verification handshakes, provider webhooks and web chat exchanges for one channel
// @Tags channel
// @Param channel_id path string true "Channel id"
// @Success 200
// @Failure 404 {object} ErrorResponse
// @Router /channels/{channel_id} [post]
func (h *ChannelHandler) Receive(c echo.Context) error {
	id := c.Param("channel_id")
	ch, ok := h.registry.Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "channel not found")
	}
	ctx := logger.WithContext(c.Request().Context(), h.logger)
	resp := channel.Dispatch(ctx, ch, c.Request(), h.handler)
	if err := resp.Write(c.Response()); err != nil {
		h.logger.Warn("write channel response failed", slog.String("channel", ch.ID()), slog.Any("error", err))
	}
	return nil
}
