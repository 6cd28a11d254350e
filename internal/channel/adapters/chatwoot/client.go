package chatwoot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/memohai/msgbridge/internal/channel/adapters/adapterutil"
)

// DefaultBaseURL is the hosted Chatwoot instance.
const DefaultBaseURL = "https://app.chatwoot.com"

// Client calls the Chatwoot application API with a user or agent-bot access token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(log *slog.Logger, baseURL, token string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = adapterutil.NewHTTPClient(0)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		logger:  log,
	}
}

// NewContact is the body of a contact creation request.
type NewContact struct {
	InboxID              int64             `json:"inbox_id"`
	Name                 string            `json:"name,omitempty"`
	Email                string            `json:"email,omitempty"`
	PhoneNumber          string            `json:"phone_number,omitempty"`
	Identifier           string            `json:"identifier,omitempty"`
	AvatarURL            string            `json:"avatar_url,omitempty"`
	AdditionalAttributes map[string]string `json:"additional_attributes,omitempty"`
}

// NewConversation is the body of a conversation creation request.
type NewConversation struct {
	SourceID             string            `json:"source_id"`
	InboxID              int64             `json:"inbox_id"`
	ContactID            string            `json:"contact_id"`
	AdditionalAttributes map[string]string `json:"additional_attributes,omitempty"`
	Status               string            `json:"status,omitempty"`
}

// contactResponse accepts both the bare and the wrapped contact shapes returned across versions.
type contactResponse struct {
	ID      int64 `json:"id"`
	Payload struct {
		Contact struct {
			ID int64 `json:"id"`
		} `json:"contact"`
	} `json:"payload"`
}

type idResponse struct {
	ID int64 `json:"id"`
}

// CreateContact creates a contact in account and returns its id.
func (c *Client) CreateContact(ctx context.Context, accountID int64, contact NewContact) (int64, error) {
	var resp contactResponse
	url := fmt.Sprintf("%s/api/v1/accounts/%d/contacts", c.baseURL, accountID)
	if err := c.post(ctx, url, contact, &resp); err != nil {
		return 0, err
	}
	if resp.Payload.Contact.ID != 0 {
		return resp.Payload.Contact.ID, nil
	}
	if resp.ID == 0 {
		return 0, fmt.Errorf("chatwoot: contact response without id")
	}
	return resp.ID, nil
}

// CreateConversation opens a conversation in account and returns its id.
func (c *Client) CreateConversation(ctx context.Context, accountID int64, conv NewConversation) (int64, error) {
	var resp idResponse
	url := fmt.Sprintf("%s/api/v1/accounts/%d/conversations", c.baseURL, accountID)
	if err := c.post(ctx, url, conv, &resp); err != nil {
		return 0, err
	}
	if resp.ID == 0 {
		return 0, fmt.Errorf("chatwoot: conversation response without id")
	}
	return resp.ID, nil
}

// CreateMessage posts msg to a conversation. accountID 0 uses the account-less route.
func (c *Client) CreateMessage(ctx context.Context, accountID int64, conversationID string, msg OutgoingMessage) error {
	url := fmt.Sprintf("%s/api/v1/conversations/%s/messages", c.baseURL, conversationID)
	if accountID > 0 {
		url = fmt.Sprintf("%s/api/v1/accounts/%d/conversations/%s/messages", c.baseURL, accountID, conversationID)
	}
	return c.post(ctx, url, msg, nil)
}

func (c *Client) post(ctx context.Context, url string, payload, out any) error {
	header := http.Header{}
	header.Set("api_access_token", c.token)
	return adapterutil.PostJSON(ctx, c.http, c.logger, ID, url, header, payload, out)
}
