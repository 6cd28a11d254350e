package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/memohai/msgbridge/internal/channel"
	"github.com/memohai/msgbridge/internal/identity"
	"github.com/memohai/msgbridge/internal/logger"
	"github.com/memohai/msgbridge/internal/message"
	"github.com/memohai/msgbridge/internal/message/event"
	"github.com/memohai/msgbridge/internal/storage"
	"github.com/memohai/msgbridge/internal/storage/memory"
)

type fakeChannel struct {
	id      string
	result  channel.Result
	sendErr error
	sent    []message.Message
}

func (c *fakeChannel) ID() string { return c.id }

func (c *fakeChannel) Receive(context.Context, *http.Request) channel.Result { return c.result }

func (c *fakeChannel) Send(_ context.Context, _ string, msg message.Message) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func newEcho(handlers ...interface{ Register(*echo.Echo) }) *echo.Echo {
	e := echo.New()
	for _, h := range handlers {
		h.Register(e)
	}
	return e
}

func serve(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestChannelHandlerDispatches(t *testing.T) {
	t.Parallel()
	reg := channel.NewRegistry()
	ch := &fakeChannel{id: "test", result: channel.Deliver(channel.Inbound{AuthorID: "a", Message: message.Text("hi")})}
	reg.MustRegister(ch)
	var got string
	h := NewChannelHandler(logger.Discard(), reg, func(ctx context.Context, authorID string, msg message.Message, c channel.Channel) error {
		got = msg.PlainText()
		return c.Send(ctx, authorID, message.Text("pong"))
	})
	e := newEcho(h)

	rec := serve(e, http.MethodPost, "/channels/test", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got != "hi" || len(ch.sent) != 1 {
		t.Fatalf("handler got %q, sent %d", got, len(ch.sent))
	}

	if rec := serve(e, http.MethodPost, "/channels/unknown", `{}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown channel status = %d", rec.Code)
	}
}

func TestChannelHandlerWritesTerminalResponse(t *testing.T) {
	t.Parallel()
	reg := channel.NewRegistry()
	reg.MustRegister(&fakeChannel{id: "test", result: channel.Respond(channel.Text(http.StatusForbidden, "Forbidden"))})
	e := newEcho(NewChannelHandler(logger.Discard(), reg, nil))
	rec := serve(e, http.MethodGet, "/channels/test?hub.mode=subscribe", "")
	if rec.Code != http.StatusForbidden || rec.Body.String() != "Forbidden" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestAdminSendErrorMapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "ok", want: http.StatusNoContent},
		{name: "no converter", err: channel.ErrNoConverter, want: http.StatusUnprocessableEntity},
		{name: "no conversation", err: channel.ErrNoConversation, want: http.StatusNotFound},
		{name: "delivery", err: &channel.DeliveryError{Channel: "test", Status: 500, Body: "down"}, want: http.StatusBadGateway},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reg := channel.NewRegistry()
			reg.MustRegister(&fakeChannel{id: "test", sendErr: tt.err})
			e := newEcho(NewAdminHandler(logger.Discard(), reg, memory.New(), nil))
			rec := serve(e, http.MethodPost, "/admin/channels/test/send", `{"recipient":"51999","message":{"type":"text","content":"hi"}}`)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestAdminSendValidation(t *testing.T) {
	t.Parallel()
	reg := channel.NewRegistry()
	ch := &fakeChannel{id: "test"}
	reg.MustRegister(ch)
	e := newEcho(NewAdminHandler(logger.Discard(), reg, memory.New(), nil))

	for name, body := range map[string]string{
		"missing recipient": `{"message":{"type":"text","content":"hi"}}`,
		"unknown type":      `{"recipient":"1","message":{"type":"sticker","content":"x"}}`,
		"invalid content":   `{"recipient":"1","message":{"type":"text","content":{"a":1}}}`,
		"malformed":         `{"recipient":`,
	} {
		if rec := serve(e, http.MethodPost, "/admin/channels/test/send", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", name, rec.Code)
		}
	}
	if len(ch.sent) != 0 {
		t.Fatalf("invalid requests reached the channel: %d", len(ch.sent))
	}
	if rec := serve(e, http.MethodPost, "/admin/channels/nope/send", `{}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown channel status = %d", rec.Code)
	}
}

func TestAdminListChannelsAndGetUser(t *testing.T) {
	t.Parallel()
	reg := channel.NewRegistry()
	reg.MustRegister(&fakeChannel{id: "web"})
	reg.MustRegister(&fakeChannel{id: "chatwoot"})
	store := memory.New()
	userID := identity.UserID("web", "session")
	if _, err := store.MergeUser(context.Background(), userID, storage.Profile{Name: storage.String("Ana")}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	e := newEcho(NewAdminHandler(logger.Discard(), reg, store, nil))

	rec := serve(e, http.MethodGet, "/admin/channels", "")
	var list map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := list["channels"]; len(got) != 2 || got[0] != "chatwoot" || got[1] != "web" {
		t.Fatalf("channels = %v", got)
	}

	rec = serve(e, http.MethodGet, "/admin/users/"+userID, "")
	var user storage.User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil || user.Name != "Ana" {
		t.Fatalf("user = %+v, err = %v", user, err)
	}
	if rec := serve(e, http.MethodGet, "/admin/users/"+identity.UserID("web", "other"), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing user status = %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/admin/users/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d", rec.Code)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	e := newEcho(NewPingHandler(logger.Discard()))
	rec := serve(e, http.MethodGet, "/ping", "")
	var resp PingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Status != "ok" {
		t.Fatalf("ping = %+v, err = %v", resp, err)
	}
	if rec := serve(e, http.MethodHead, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestAdminStreamUserEvents(t *testing.T) {
	t.Parallel()
	hub := event.NewHub()
	store := event.Publishing(memory.New(), hub)
	e := newEcho(NewAdminHandler(logger.Discard(), channel.NewRegistry(), store, hub))
	srv := httptest.NewServer(e)
	defer srv.Close()

	userID := identity.UserID("web", "session")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/admin/users/"+userID+"/events", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func() map[string]any {
		t.Helper()
		for lines.Scan() {
			line := lines.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var payload map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload); err != nil {
				t.Fatalf("decode %q: %v", line, err)
			}
			return payload
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return nil
	}

	if got := next(); got["type"] != "ready" {
		t.Fatalf("first event = %v", got)
	}
	if err := store.Track(context.Background(), userID, "message_received", map[string]any{"type": "text"}); err != nil {
		t.Fatalf("track: %v", err)
	}
	got := next()
	if got["type"] != "message_received" || got["user_id"] != userID {
		t.Fatalf("event = %v", got)
	}
}

func TestAdminStreamUserEventsDisabled(t *testing.T) {
	t.Parallel()
	e := newEcho(NewAdminHandler(logger.Discard(), channel.NewRegistry(), memory.New(), nil))
	if rec := serve(e, http.MethodGet, "/admin/users/"+identity.UserID("web", "x")+"/events", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/admin/users/bogus/events", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d", rec.Code)
	}
}

func TestSwaggerSpec(t *testing.T) {
	t.Parallel()
	e := newEcho(NewSwaggerHandler(logger.Discard()))
	rec := serve(e, http.MethodGet, "/api/swagger.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, path := range []string{"/channels/{channel_id}", "/admin/channels/{channel_id}/send"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Fatalf("missing path %s", path)
		}
	}
	if rec := serve(e, http.MethodGet, "/api/docs", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "swagger-ui") {
		t.Fatalf("ui status = %d", rec.Code)
	}
}
