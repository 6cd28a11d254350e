// Package webchat implements the browser chat channel. Each POST is one exchange: the message
// handler runs inside the request and every reply it sends is returned in the response body.
package webchat

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/memohai/msgbridge/internal/channel"
	"github.com/memohai/msgbridge/internal/channel/adapters/adapterutil"
	"github.com/memohai/msgbridge/internal/identity"
	"github.com/memohai/msgbridge/internal/message"
	"github.com/memohai/msgbridge/internal/storage"
)

// ID is the channel identifier.
const ID = "web"

// KeyPassword holds the bcrypt hash of a session password.
const KeyPassword = "#web-password"

const (
	actionParam = "action"
	actionAuth  = "auth"

	EventSessionCreated  = "session_created"
	EventMessageReceived = "message_received"
)

// Config configures the web chat channel.
type Config struct {
	// AllowedOrigins lists exact origins or "re:"-prefixed regular expressions. A pattern must
	// match the whole origin, as if wrapped in ^(?:...)$.
	AllowedOrigins []string
	// AuthorizationToken, when set, must equal the Authorization header of credential requests.
	AuthorizationToken string
	// PasswordCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	PasswordCost int
}

// Credentials are issued by GET ?action=auth.
type Credentials struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// Channel is the web chat channel.
type Channel struct {
	cfg      Config
	store    storage.Store
	origins  *originMatcher
	sessions *sessions
	// dummyHash is compared against when no password is stored so that unknown and known
	// sessions take the same time to reject.
	dummyHash []byte
	logger    *slog.Logger
}

var (
	_ channel.Channel   = (*Channel)(nil)
	_ channel.Exchanger = (*Channel)(nil)
)

func New(log *slog.Logger, store storage.Store, cfg Config) (*Channel, error) {
	if store == nil {
		return nil, errors.New("webchat: store is required")
	}
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}
	origins, err := newOriginMatcher(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.PasswordCost)
	if err != nil {
		return nil, err
	}
	return &Channel{
		cfg:       cfg,
		store:     store,
		origins:   origins,
		sessions:  newSessions(),
		dummyHash: dummy,
		logger:    adapterutil.Logger(log, ID),
	}, nil
}

func (c *Channel) ID() string {
	return ID
}

// Receive answers preflights and credential requests and defers message exchanges.
func (c *Channel) Receive(ctx context.Context, r *http.Request) channel.Result {
	switch {
	case r.Method == http.MethodOptions:
		resp := &channel.Response{Status: http.StatusNoContent}
		return channel.Respond(resp.WithHeader(c.origins.headers(r, true)))
	case r.Method == http.MethodGet && r.URL.Query().Get(actionParam) == actionAuth:
		return channel.Respond(c.issueCredentials(ctx, r))
	case r.Method == http.MethodPost:
		return channel.Defer()
	default:
		return channel.Respond(c.withCORS(r, channel.Text(http.StatusMethodNotAllowed, "Invalid method")))
	}
}

func (c *Channel) issueCredentials(ctx context.Context, r *http.Request) *channel.Response {
	if c.cfg.AuthorizationToken != "" {
		got := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(got), []byte(c.cfg.AuthorizationToken)) != 1 {
			return c.unauthorized(r)
		}
	}
	creds := Credentials{User: uuid.NewString(), Password: uuid.NewString()}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), c.cfg.PasswordCost)
	if err != nil {
		c.logger.Error("hash password failed", slog.Any("error", err))
		return c.withCORS(r, channel.Text(http.StatusInternalServerError, "Internal error"))
	}
	userID := identity.UserID(ID, creds.User)
	if err := c.store.SetKV(ctx, userID, KeyPassword, string(hash)); err != nil {
		c.logger.Error("store password failed", slog.String("user_id", userID), slog.Any("error", err))
		return c.withCORS(r, channel.Text(http.StatusInternalServerError, "Internal error"))
	}
	if err := c.store.Track(ctx, userID, EventSessionCreated, map[string]any{"channel": ID}); err != nil {
		c.logger.Warn("track session failed", slog.String("user_id", userID), slog.Any("error", err))
	}
	c.logger.Info("credentials issued", slog.String("user_id", userID))
	return c.withCORS(r, channel.JSON(http.StatusOK, creds))
}

// Exchange authenticates the caller, runs handler with the posted message and returns every
// message sent to the session meanwhile. The buffer is released on every path.
func (c *Channel) Exchange(ctx context.Context, r *http.Request, handler channel.MessageHandler) *channel.Response {
	sessionID, ok := c.authenticate(ctx, r)
	if !ok {
		return c.unauthorized(r)
	}

	buf, release := c.sessions.open(sessionID)
	defer release()

	body, err := adapterutil.ReadBody(r)
	if err != nil {
		return c.withCORS(r, channel.Text(http.StatusBadRequest, "Invalid message"))
	}
	msg, err := message.Parse(body)
	if err != nil {
		c.logger.Debug("invalid message", slog.Any("error", err))
		return c.withCORS(r, channel.Text(http.StatusBadRequest, "Invalid message"))
	}

	userID := identity.UserID(ID, sessionID)
	if err := c.store.Track(ctx, userID, EventMessageReceived, map[string]any{
		"channel": ID,
		"type":    string(msg.Type),
	}); err != nil {
		c.logger.Warn("track inbound message failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	status := http.StatusOK
	if err := handler(ctx, sessionID, msg, c); err != nil {
		c.logger.Error("handle message failed", slog.String("user_id", userID), slog.Any("error", err))
		status = http.StatusInternalServerError
	}
	return c.withCORS(r, channel.JSON(status, buf.drain()))
}

// authenticate validates Basic credentials. Every failure looks the same to the caller.
func (c *Channel) authenticate(ctx context.Context, r *http.Request) (string, bool) {
	sessionID, password, ok := r.BasicAuth()
	if !ok || sessionID == "" {
		return "", false
	}
	userID := identity.UserID(ID, sessionID)
	stored, err := c.store.GetKV(ctx, userID, KeyPassword)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Error("load password failed", slog.String("user_id", userID), slog.Any("error", err))
		}
		_ = bcrypt.CompareHashAndPassword(c.dummyHash, []byte(password))
		return "", false
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) != nil {
		return "", false
	}
	return sessionID, true
}

// Send appends msg to the in-flight exchange of recipientID. Without one the message is dropped.
func (c *Channel) Send(_ context.Context, recipientID string, msg message.Message) error {
	if err := message.Validate(msg); err != nil {
		return fmt.Errorf("webchat: %w", err)
	}
	if !c.sessions.push(recipientID, msg) {
		c.logger.Debug("no active session, message dropped", slog.String("session", recipientID))
	}
	return nil
}

func (c *Channel) unauthorized(r *http.Request) *channel.Response {
	return c.withCORS(r, channel.Text(http.StatusUnauthorized, "Unauthorized"))
}

func (c *Channel) withCORS(r *http.Request, resp *channel.Response) *channel.Response {
	return resp.WithHeader(c.origins.headers(r, false))
}
