package record

// This file provides the common data objects exchanged with the
// backend.  String fields that carry user content (names, numbers,
// titles, snippets, bodies) hold ciphertext by the time a record
// reaches this layer; numeric and boolean metadata travels plain.

// Session identifies an authenticated account on this device.
type Session struct {
	// The permanent account identifier assigned by the backend at
	// signup.
	AccountID string `json:"account_id"`

	// The identifier of this device within the account.  May be
	// empty on a session restored before device registration
	// completed.
	DeviceID string `json:"device_id"`

	// Whether this device is the account's primary device.  Only
	// the primary device relays carrier traffic; secondaries
	// mirror it.
	Primary bool `json:"primary"`

	// Salts returned by the backend at signup/login, consumed by
	// the key derivation step.  Base64 encoded.
	Salt1 string `json:"salt1"`
	Salt2 string `json:"salt2"`
}

// Device is one registered endpoint of an account.
type Device struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Primary  bool   `json:"primary"`
	FCMToken string `json:"fcm_token,omitempty"`
}

// Contact mirrors one row of the local contact table.
type Contact struct {
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	ColorDark   int    `json:"color_dark"`
	ColorLight  int    `json:"color_light"`
	ColorAccent int    `json:"color_accent"`
}

// Conversation mirrors one row of the local conversation table.
type Conversation struct {
	ID           int64  `json:"device_id"`
	Color        int    `json:"color"`
	ColorDark    int    `json:"color_dark"`
	ColorLight   int    `json:"color_light"`
	ColorAccent  int    `json:"color_accent"`
	LEDColor     int    `json:"led_color"`
	Pinned       bool   `json:"pinned"`
	Read         bool   `json:"read"`
	Timestamp    int64  `json:"timestamp"`
	Title        string `json:"title"`
	PhoneNumbers string `json:"phone_numbers"`
	Snippet      string `json:"snippet"`
	Ringtone     string `json:"ringtone,omitempty"`
	IDMatcher    string `json:"id_matcher"`
	Mute         bool   `json:"mute"`
	Archive      bool   `json:"archive"`
	Private      bool   `json:"private_notifications"`
}

// Message mirrors one row of the local message table.  For media
// messages Data holds a reference, not the payload; the payload
// itself moves through the blob store keyed by the message ID.
type Message struct {
	ID             int64  `json:"device_id"`
	ConversationID int64  `json:"device_conversation_id"`
	Type           int    `json:"message_type"`
	Data           string `json:"data"`
	Timestamp      int64  `json:"timestamp"`
	MimeType       string `json:"mime_type"`
	Read           bool   `json:"read"`
	Seen           bool   `json:"seen"`
	From           string `json:"message_from,omitempty"`
	Color          int    `json:"color,omitempty"`
}

// Draft is an unsent message body attached to a conversation.
type Draft struct {
	ID             int64  `json:"device_id"`
	ConversationID int64  `json:"device_conversation_id"`
	Data           string `json:"data"`
	MimeType       string `json:"mime_type"`
}

// Blacklist is one blocked phone number.
type Blacklist struct {
	ID          int64  `json:"device_id"`
	PhoneNumber string `json:"phone_number"`
}

// ScheduledMessage is a message queued for a future send time.
type ScheduledMessage struct {
	ID        int64  `json:"device_id"`
	To        string `json:"to"`
	Data      string `json:"data"`
	MimeType  string `json:"mime_type"`
	Timestamp int64  `json:"timestamp"`
	Title     string `json:"title"`
	Repeat    int    `json:"repeat"`
}

// Setting is one synchronized preference value.  Type is one of
// "string", "boolean", "int" or "long" and tells remote devices how
// to decode Value.
type Setting struct {
	Key   string `json:"pref"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// MimeText is the mime type of plain text messages.  Anything else
// is treated as media and has a payload in the blob store.
const MimeText = "text/plain"

// Media reports whether the message's payload lives in the blob
// store rather than in the Data field.
func (m Message) Media() bool {
	return m.MimeType != "" && m.MimeType != MimeText
}
