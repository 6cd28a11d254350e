package chatwoot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/msgbridge/internal/channel"
	cw "github.com/memohai/msgbridge/internal/channel/adapters/chatwoot"
	"github.com/memohai/msgbridge/internal/identity"
	"github.com/memohai/msgbridge/internal/logger"
	"github.com/memohai/msgbridge/internal/message"
	"github.com/memohai/msgbridge/internal/storage"
	"github.com/memohai/msgbridge/internal/storage/memory"
)

type fakeChatwoot struct {
	mu       sync.Mutex
	contacts []map[string]any
	convs    []map[string]any
	messages []cw.OutgoingMessage
	paths    []string
	fail     bool
}

func (f *fakeChatwoot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)
	if f.fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	body, _ := io.ReadAll(r.Body)
	switch r.URL.Path {
	case "/api/v1/accounts/1/contacts":
		var c map[string]any
		_ = json.Unmarshal(body, &c)
		f.contacts = append(f.contacts, c)
		_, _ = io.WriteString(w, `{"payload":{"contact":{"id":5}}}`)
	case "/api/v1/accounts/1/conversations":
		var c map[string]any
		_ = json.Unmarshal(body, &c)
		f.convs = append(f.convs, c)
		_, _ = io.WriteString(w, `{"id":8}`)
	case "/api/v1/accounts/1/conversations/8/messages":
		var m cw.OutgoingMessage
		_ = json.Unmarshal(body, &m)
		f.messages = append(f.messages, m)
		_, _ = io.WriteString(w, `{"id":1}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type stubChannel struct {
	id    string
	sends int
}

func (c *stubChannel) ID() string { return c.id }
func (c *stubChannel) Receive(context.Context, *http.Request) channel.Result {
	return channel.Respond(nil)
}
func (c *stubChannel) Send(context.Context, string, message.Message) error {
	c.sends++
	return nil
}

type stubExchanger struct{ stubChannel }

func (c *stubExchanger) Exchange(context.Context, *http.Request, channel.MessageHandler) *channel.Response {
	return channel.Text(http.StatusOK, "exchanged")
}

func newMirror(t *testing.T) (*Mirror, *fakeChatwoot, *memory.Store) {
	t.Helper()
	fake := &fakeChatwoot{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	store := memory.New()
	m, err := New(logger.Discard(), store, Config{BaseURL: srv.URL, APIKey: "k", AccountID: 1, InboxID: 3})
	require.NoError(t, err)
	return m, fake, store
}

func TestMirrorInboundAndOutbound(t *testing.T) {
	t.Parallel()
	m, fake, store := newMirror(t)
	ctx := context.Background()
	userID := identity.UserID("whatsapp", "51999")
	_, err := store.MergeUser(ctx, userID, storage.Profile{
		Name:        storage.String("Ana"),
		PhoneNumber: storage.String("51999"),
		Metadata:    map[string]string{"city": "Lima"},
	})
	require.NoError(t, err)

	wa := &stubChannel{id: "whatsapp"}
	handler := m.WrapHandler(func(ctx context.Context, authorID string, msg message.Message, ch channel.Channel) error {
		return ch.Send(ctx, authorID, message.Text("reply to "+msg.PlainText()))
	})
	require.NoError(t, handler(ctx, "51999", message.Text("hi"), wa))
	require.NoError(t, handler(ctx, "51999", message.Text("again"), wa))

	assert.Equal(t, 2, wa.sends)
	require.Len(t, fake.contacts, 1)
	assert.Equal(t, "+51999", fake.contacts[0]["phone_number"])
	assert.Equal(t, "Ana", fake.contacts[0]["name"])
	require.Len(t, fake.convs, 1)
	assert.Equal(t, "51999", fake.convs[0]["source_id"])
	assert.Equal(t, "5", fake.convs[0]["contact_id"])

	require.Len(t, fake.messages, 4)
	assert.Equal(t, cw.OutgoingMessage{Content: "hi", MessageType: "incoming"}, fake.messages[0])
	assert.Equal(t, cw.OutgoingMessage{Content: "reply to hi", MessageType: "outgoing"}, fake.messages[1])
	assert.Equal(t, "outgoing", fake.messages[3].MessageType)

	conv, err := store.GetKV(ctx, userID, cw.KeyConversation)
	require.NoError(t, err)
	assert.Equal(t, "8", conv)
}

func TestMirrorSkipsChatwootChannel(t *testing.T) {
	t.Parallel()
	m, fake, _ := newMirror(t)
	ch := &stubChannel{id: cw.ID}
	assert.Same(t, channel.Channel(ch), m.WrapChannel(ch))
	handler := m.WrapHandler(func(ctx context.Context, authorID string, _ message.Message, ch channel.Channel) error {
		return ch.Send(ctx, authorID, message.Text("x"))
	})
	require.NoError(t, handler(context.Background(), "9", message.Text("hi"), ch))
	assert.Empty(t, fake.paths)
}

func TestMirrorFailureDoesNotFailExchange(t *testing.T) {
	t.Parallel()
	m, fake, store := newMirror(t)
	fake.fail = true
	ch := &stubChannel{id: "web"}
	called := false
	handler := m.WrapHandler(func(ctx context.Context, authorID string, _ message.Message, ch channel.Channel) error {
		called = true
		return ch.Send(ctx, authorID, message.Text("x"))
	})
	require.NoError(t, handler(context.Background(), "session", message.Text("hi"), ch))
	assert.True(t, called)
	assert.Equal(t, 1, ch.sends)
	_, err := store.GetKV(context.Background(), identity.UserID("web", "session"), cw.KeyContact)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWrapChannelKeepsExchanger(t *testing.T) {
	t.Parallel()
	m, _, _ := newMirror(t)
	wrapped := m.WrapChannel(&stubExchanger{stubChannel: stubChannel{id: "web"}})
	ex, ok := wrapped.(channel.Exchanger)
	require.True(t, ok)
	resp := ex.Exchange(context.Background(), httptest.NewRequest(http.MethodPost, "/", nil), nil)
	assert.Equal(t, "exchanged", string(resp.Body))
	assert.Same(t, wrapped, m.WrapChannel(wrapped))

	plain := m.WrapChannel(&stubChannel{id: "whatsapp"})
	_, ok = plain.(channel.Exchanger)
	assert.False(t, ok)
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()
	_, err := New(nil, memory.New(), Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = New(nil, memory.New(), Config{AccountID: 1, InboxID: 1})
	assert.Error(t, err)
}
