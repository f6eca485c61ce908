package ws

import (
	"time"

	"tenismatch/internal/domain"
)

// Client to server event types.
const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventSend        = "message"
	EventTyping      = "typing"
	EventMarkRead    = "mark_read"
	EventPing        = "ping"
)

// Server to client event types. A pushed message reuses EventSend.
const (
	EventMessage      = "message"
	EventSubscribed   = "subscribed"
	EventAck          = "message_ack"
	EventMessagesRead = "messages_read"
	EventPresence     = "presence"
	EventPong         = "pong"
	EventError        = "error"
)

// Error codes carried by EventError frames.
const (
	CodeInvalidInput     = "invalid_input"
	CodeUnauthorized     = "unauthorized"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeStoreUnavailable = "store_unavailable"
)

// Event is the single JSON frame shape used in both directions.
type Event struct {
	Type           string          `json:"type"`
	ConversationID int64           `json:"conversation_id,omitempty"`
	SinceID        int64           `json:"since_id,omitempty"`
	Body           string          `json:"body,omitempty"`
	ClientToken    string          `json:"client_token,omitempty"`
	Upto           *time.Time      `json:"upto,omitempty"`
	Message        *domain.Message `json:"message,omitempty"`
	UserID         int64           `json:"user_id,omitempty"`
	Online         *bool           `json:"online,omitempty"`
	Typing         []int64         `json:"typing,omitempty"`
	Error          string          `json:"error,omitempty"`
	Code           string          `json:"code,omitempty"`
}
