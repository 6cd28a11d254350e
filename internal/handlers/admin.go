package handlers

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memohai/msgbridge/internal/auth"
	"github.com/memohai/msgbridge/internal/channel"
	"github.com/memohai/msgbridge/internal/identity"
	"github.com/memohai/msgbridge/internal/message"
	"github.com/memohai/msgbridge/internal/message/event"
	"github.com/memohai/msgbridge/internal/storage"
)

// streamHeartbeat is the interval between keep-alive pings on an event stream.
const streamHeartbeat = 20 * time.Second

// AdminHandler serves the operator API under /admin. Authentication is applied by the server.
type AdminHandler struct {
	registry *channel.Registry
	store    storage.Store
	events   event.Subscriber
	logger   *slog.Logger
}

// NewAdminHandler builds the admin API. A nil events subscriber disables the event stream.
func NewAdminHandler(log *slog.Logger, registry *channel.Registry, store storage.Store, events event.Subscriber) *AdminHandler {
	return &AdminHandler{
		registry: registry,
		store:    store,
		events:   events,
		logger:   log.With(slog.String("handler", "admin")),
	}
}

// Register mounts the admin routes. A nil handler mounts nothing.
func (h *AdminHandler) Register(e *echo.Echo) {
	if h == nil {
		return
	}
	group := e.Group("/admin")
	group.GET("/channels", h.ListChannels)
	group.POST("/channels/:channel_id/send", h.Send)
	group.GET("/users/:user_id", h.GetUser)
	group.GET("/users/:user_id/events", h.StreamUserEvents)
}

// SendRequest is the body of POST /admin/channels/{channel_id}/send.
type SendRequest struct {
	Recipient string          `json:"recipient"`
	Message   message.Message `json:"message"`
}

// ListChannels godoc
// @Summary List channels
// @Tags admin
// @Success 200 {object} map[string][]string
// @Router /admin/channels [get]
func (h *AdminHandler) ListChannels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"channels": h.registry.IDs()})
}

// Send godoc
// @Summary Send a message
// @Description Deliver a canonical message to a provider-native recipient in a single attempt
// @Tags admin
// @Param channel_id path string true "Channel id"
// @Param payload body SendRequest true "Recipient and message"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /admin/channels/{channel_id}/send [post]
func (h *AdminHandler) Send(c echo.Context) error {
	ch, err := h.registry.Lookup(c.Param("channel_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Recipient = strings.TrimSpace(req.Recipient)
	if req.Recipient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient is required")
	}
	if err := message.Validate(req.Message); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	operator, _ := auth.SubjectFromContext(c)
	if err := ch.Send(c.Request().Context(), req.Recipient, req.Message); err != nil {
		h.logger.Warn("admin send failed",
			slog.String("channel", ch.ID()),
			slog.String("operator", operator),
			slog.Any("error", err),
		)
		return sendError(err)
	}
	h.logger.Info("admin send",
		slog.String("channel", ch.ID()),
		slog.String("operator", operator),
		slog.String("type", string(req.Message.Type)),
	)
	return c.NoContent(http.StatusNoContent)
}

// GetUser godoc
// @Summary Get a stored user
// @Tags admin
// @Param user_id path string true "Derived user id"
// @Success 200 {object} storage.User
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/users/{user_id} [get]
func (h *AdminHandler) GetUser(c echo.Context) error {
	userID := c.Param("user_id")
	if err := identity.ValidateUserID(userID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	user, err := h.store.GetUser(c.Request().Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

func sendError(err error) error {
	var delivery *channel.DeliveryError
	switch {
	case errors.Is(err, channel.ErrNoConverter):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, channel.ErrNoConversation):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, message.ErrInvalidContent), errors.Is(err, message.ErrUnknownType):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &delivery):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// StreamUserEvents godoc
// @Summary Stream tracked events of one user
// @Description Server-sent events, one JSON event per data line, with periodic ping events
// @Tags admin
// @Param user_id path string true "Derived user id"
// @Success 200 {string} string "text/event-stream"
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /admin/users/{user_id}/events [get]
func (h *AdminHandler) StreamUserEvents(c echo.Context) error {
	userID := c.Param("user_id")
	if err := identity.ValidateUserID(userID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if h.events == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event stream not configured")
	}
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}

	_, stream, cancel := h.events.Subscribe(userID, event.DefaultBufferSize)
	defer cancel()

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
	writer := bufio.NewWriter(c.Response().Writer)
	if err := writeSSEJSON(writer, flusher, map[string]any{"type": "ready", "user_id": userID}); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-heartbeat.C:
			if err := writeSSEJSON(writer, flusher, map[string]any{"type": "ping"}); err != nil {
				return nil
			}
		case ev, ok := <-stream:
			if !ok {
				return nil
			}
			if err := writeSSEJSON(writer, flusher, ev); err != nil {
				h.logger.Debug("event stream closed", slog.String("user_id", userID), slog.Any("error", err))
				return nil
			}
		}
	}
}

func writeSSEJSON(writer *bufio.Writer, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(writer, "data: %s\n\n", data); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
