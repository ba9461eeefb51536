package models

import (
	"time"

	"github.com/google/uuid"
)

// Frame type names, both directions (§6).
const (
	FrameConnected     = "connected"
	FramePing          = "ping"
	FramePong          = "pong"
	FrameMessage       = "message"
	FrameMessageEdited = "message_edited"
	FrameRead          = "read"
	FrameEditMessage   = "edit_message"
	FrameError         = "error"
)

// Envelope is the self-describing JSON object published on the fan-out
// bus and, with event-specific fields, sent to clients. Keeping it as a
// single loosely-typed struct mirrors the bus payload shape described in
// §4.3 ("self-describing JSON envelopes").
type Envelope struct {
	Type       string     `json:"type"`
	ChatRoomID uuid.UUID  `json:"chat_id,omitempty"`
	Message    *Message   `json:"message,omitempty"`
	MessageID  uuid.UUID  `json:"message_id,omitempty"`
	NewContent string     `json:"new_content,omitempty"`
	EditedAt   *time.Time `json:"edited_at,omitempty"`
}

// Inbound frame payloads, decoded from a client's raw JSON frame.

// ClientMessageFrame is the {type:"message", chat_id, content} payload.
type ClientMessageFrame struct {
	ChatRoomID uuid.UUID `json:"chat_id"`
	Content    string    `json:"content"`
}

// ClientReadFrame is the {type:"read", message_ids} payload.
type ClientReadFrame struct {
	MessageIDs []uuid.UUID `json:"message_ids"`
}

// ClientEditFrame is the {type:"edit_message", chat_id, message_id, content} payload.
type ClientEditFrame struct {
	ChatRoomID uuid.UUID `json:"chat_id"`
	MessageID  uuid.UUID `json:"message_id"`
	Content    string    `json:"content"`
}

// ServerConnectedFrame is {type:"connected", user_id, timestamp}.
type ServerConnectedFrame struct {
	Type      string    `json:"type"`
	UserID    uuid.UUID `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerPingFrame is {type:"ping"}.
type ServerPingFrame struct {
	Type string `json:"type"`
}

// ServerErrorFrame is {type:"error", message, timestamp}.
type ServerErrorFrame struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
