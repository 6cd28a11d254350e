package chatwoot

import "encoding/json"

// Webhook event and message fields.
const (
	EventMessageCreated = "message_created"

	MessageTypeIncoming = "incoming"
	MessageTypeOutgoing = "outgoing"

	ContentTypeText        = "text"
	ContentTypeInputSelect = "input_select"
)

// Payload is the body of a Chatwoot message webhook.
type Payload struct {
	Event             string             `json:"event"`
	ID                int64              `json:"id"`
	Content           json.RawMessage    `json:"content"`
	ContentType       string             `json:"content_type"`
	ContentAttributes *ContentAttributes `json:"content_attributes,omitempty"`
	MessageType       string             `json:"message_type"`
	SourceID          string             `json:"source_id"`
	Account           Account            `json:"account"`
	Conversation      Conversation       `json:"conversation"`
	Sender            *Sender            `json:"sender"`
}

type Account struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

type Conversation struct {
	ID      int64  `json:"id"`
	InboxID int64  `json:"inbox_id"`
	Status  string `json:"status"`
}

type Sender struct {
	ID                   int64          `json:"id"`
	Name                 string         `json:"name"`
	Email                string         `json:"email"`
	PhoneNumber          string         `json:"phone_number"`
	Avatar               string         `json:"avatar"`
	Thumbnail            string         `json:"thumbnail"`
	AdditionalAttributes map[string]any `json:"additional_attributes"`
	CustomAttributes     map[string]any `json:"custom_attributes"`
}

// OutgoingMessage is the body posted to the conversation messages endpoint.
type OutgoingMessage struct {
	Content           string             `json:"content"`
	ContentType       string             `json:"content_type,omitempty"`
	ContentAttributes *ContentAttributes `json:"content_attributes,omitempty"`
	MessageType       string             `json:"message_type"`
	Private           bool               `json:"private"`
}

type ContentAttributes struct {
	Items []SelectItem `json:"items,omitempty"`
}

type SelectItem struct {
	Title string `json:"title"`
	Value string `json:"value"`
}
