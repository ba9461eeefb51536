package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatRoom is a direct or group conversation. The realtime core reads
// membership through the Session Store mirror; the REST handlers below
// own the row itself.
type ChatRoom struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      *string   `json:"name,omitempty" db:"name"`
	IsGroup   bool      `json:"is_group" db:"is_group"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Members   []User    `json:"members,omitempty"`
}

// Participant is the membership relation between a user and a chat room.
// A private chat has exactly two distinct participants.
type Participant struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ChatRoomID uuid.UUID `json:"chat_room_id" db:"chat_room_id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	JoinedAt   time.Time `json:"joined_at" db:"joined_at"`
}

type CreateChatRoomRequest struct {
	Name    *string     `json:"name,omitempty"`
	IsGroup bool        `json:"is_group"`
	Members []uuid.UUID `json:"members" binding:"required,min=1"`
}

type AddParticipantsRequest struct {
	Members []uuid.UUID `json:"members" binding:"required,min=1"`
}
