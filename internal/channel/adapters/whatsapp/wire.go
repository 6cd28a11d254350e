package whatsapp

// Wire types of the WhatsApp Cloud API. Message is used in both directions: webhooks deliver it
// with From and ID set, and the messages endpoint accepts the same shape plus addressing fields.

type webhookEnvelope struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID      string   `json:"id"`
	Changes []change `json:"changes"`
}

type change struct {
	Field string      `json:"field"`
	Value changeValue `json:"value"`
}

type changeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         metadata  `json:"metadata"`
	Contacts         []contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

type metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// Message is a WhatsApp message object.
type Message struct {
	From        string       `json:"from,omitempty"`
	ID          string       `json:"id,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Type        string       `json:"type"`
	Text        *Text        `json:"text,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
	Button      *Button      `json:"button,omitempty"`
}

// Text is the body of a text message.
type Text struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

// Button is the legacy reply to a template quick-reply button.
type Button struct {
	Payload string `json:"payload,omitempty"`
	Text    string `json:"text"`
}

// Interactive carries either an outbound button/list prompt or an inbound reply to one.
type Interactive struct {
	Type        string     `json:"type"`
	Body        *Body      `json:"body,omitempty"`
	Action      *Action    `json:"action,omitempty"`
	ButtonReply *Reply     `json:"button_reply,omitempty"`
	ListReply   *ListReply `json:"list_reply,omitempty"`
}

type Body struct {
	Text string `json:"text"`
}

type Action struct {
	Button   string          `json:"button,omitempty"`
	Buttons  []ActionButton  `json:"buttons,omitempty"`
	Sections []ActionSection `json:"sections,omitempty"`
}

type ActionButton struct {
	Type  string `json:"type"`
	Reply Reply  `json:"reply"`
}

type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ListReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ActionSection struct {
	Title string      `json:"title,omitempty"`
	Rows  []ActionRow `json:"rows"`
}

type ActionRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// sendRequest is the body posted to the messages endpoint.
type sendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Message
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}
