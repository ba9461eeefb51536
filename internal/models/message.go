package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinContentLength = 1
	MaxContentLength = 2000
)

// Message is the chat message entity. Soft-deletion preserves history:
// is_deleted flags the row, listings still return it with the flag set so
// clients can render a tombstone, and the row (and its id) survive for
// receipt consistency.
type Message struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	ChatRoomID uuid.UUID  `json:"chat_id" db:"chat_room_id"`
	SenderID   uuid.UUID  `json:"sender_id" db:"sender_id"`
	Content    string     `json:"content" db:"content"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ReadAt     *time.Time `json:"read_at,omitempty" db:"read_at"`
	IsDeleted  bool       `json:"is_deleted" db:"is_deleted"`
	IsEdited   bool       `json:"is_edited" db:"is_edited"`
}

// MessageDelivery is a per (message, recipient) row. delivered_at is null
// until the recipient's first socket receives it; it is monotonic — once
// set, never unset.
type MessageDelivery struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	MessageID   uuid.UUID  `json:"message_id" db:"message_id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
}

// MessageRead records the first time a reader marked a message read.
type MessageRead struct {
	ID        uuid.UUID `json:"id" db:"id"`
	MessageID uuid.UUID `json:"message_id" db:"message_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ReadAt    time.Time `json:"read_at" db:"read_at"`
}

// MessageEdit is an append-only edit-history row. Editor must equal the
// message's original sender.
type MessageEdit struct {
	ID         uuid.UUID `json:"id" db:"id"`
	MessageID  uuid.UUID `json:"message_id" db:"message_id"`
	EditorID   uuid.UUID `json:"editor_id" db:"editor_id"`
	OldContent string    `json:"old_content" db:"old_content"`
	NewContent string    `json:"new_content" db:"new_content"`
	EditedAt   time.Time `json:"edited_at" db:"edited_at"`
}

type SendMessageRequest struct {
	ChatRoomID uuid.UUID `json:"chat_id" binding:"required"`
	Content    string    `json:"content" binding:"required"`
}

type GetMessagesRequest struct {
	ChatRoomID uuid.UUID `form:"chat_id" binding:"required"`
	Limit      int       `form:"limit"`
	Offset     int       `form:"offset"`
}

type MarkReadRequest struct {
	MessageIDs []uuid.UUID `json:"message_ids" binding:"required,min=1"`
}

type EditMessageRequest struct {
	ChatRoomID uuid.UUID `json:"chat_id" binding:"required"`
	Content    string    `json:"content" binding:"required"`
}
