package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/am4rknvl/chatcore/internal/database"
	"github.com/am4rknvl/chatcore/internal/models"
)

type ChatRoomRepository struct {
	db *database.DB
}

func NewChatRoomRepository(db *database.DB) *ChatRoomRepository {
	return &ChatRoomRepository{db: db}
}

// Create inserts a chat room.
func (r *ChatRoomRepository) Create(room *models.ChatRoom) error {
	query := `
		INSERT INTO chat_rooms (id, is_group, name, created_at)
		VALUES (uuid_generate_v4(), $1, $2, NOW())
		RETURNING id, created_at
	`

	err := r.db.QueryRow(query, room.IsGroup, room.Name).Scan(&room.ID, &room.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create chat room: %w", err)
	}

	return nil
}

// GetByID retrieves a chat room by id.
func (r *ChatRoomRepository) GetByID(id uuid.UUID) (*models.ChatRoom, error) {
	query := `
		SELECT id, is_group, name, created_at
		FROM chat_rooms
		WHERE id = $1
	`

	room := &models.ChatRoom{}
	err := r.db.QueryRow(query, id).Scan(&room.ID, &room.IsGroup, &room.Name, &room.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chat room not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat room: %w", err)
	}

	return room, nil
}

// GetByUserID retrieves every chat room a user participates in, used by
// Membership Sync on connect.
func (r *ChatRoomRepository) GetByUserID(userID uuid.UUID) ([]models.ChatRoom, error) {
	query := `
		SELECT c.id, c.is_group, c.name, c.created_at
		FROM chat_rooms c
		INNER JOIN participants p ON c.id = p.chat_room_id
		WHERE p.user_id = $1
		ORDER BY c.created_at DESC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat rooms: %w", err)
	}
	defer rows.Close()

	rooms := []models.ChatRoom{}
	for rows.Next() {
		var room models.ChatRoom
		if err := rows.Scan(&room.ID, &room.IsGroup, &room.Name, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat room: %w", err)
		}
		rooms = append(rooms, room)
	}

	return rooms, nil
}

// AddParticipant inserts a membership row, ignoring a duplicate (chat_room_id, user_id).
func (r *ChatRoomRepository) AddParticipant(p *models.Participant) error {
	query := `
		INSERT INTO participants (id, chat_room_id, user_id, joined_at)
		VALUES (uuid_generate_v4(), $1, $2, NOW())
		ON CONFLICT (chat_room_id, user_id) DO NOTHING
		RETURNING id, joined_at
	`

	err := r.db.QueryRow(query, p.ChatRoomID, p.UserID).Scan(&p.ID, &p.JoinedAt)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}

	return nil
}

// RemoveParticipant deletes a membership row.
func (r *ChatRoomRepository) RemoveParticipant(chatRoomID, userID uuid.UUID) error {
	result, err := r.db.Exec(
		`DELETE FROM participants WHERE chat_room_id = $1 AND user_id = $2`,
		chatRoomID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("participant not found")
	}

	return nil
}

// GetParticipantUserIDs returns the user ids participating in a chat room.
func (r *ChatRoomRepository) GetParticipantUserIDs(chatRoomID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(`SELECT user_id FROM participants WHERE chat_room_id = $1`, chatRoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// GetMembers retrieves the hydrated User rows for a chat room.
func (r *ChatRoomRepository) GetMembers(chatRoomID uuid.UUID) ([]models.User, error) {
	query := `
		SELECT u.id, u.username, u.email, u.password_hash, u.is_active, u.created_at
		FROM users u
		INNER JOIN participants p ON u.id = p.user_id
		WHERE p.chat_room_id = $1
	`

	rows, err := r.db.Query(query, chatRoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	members := []models.User{}
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsActive, &user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, user)
	}

	return members, nil
}

// IsParticipant checks whether userID is a participant of chatRoomID.
func (r *ChatRoomRepository) IsParticipant(chatRoomID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM participants WHERE chat_room_id = $1 AND user_id = $2)`,
		chatRoomID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check participation: %w", err)
	}

	return exists, nil
}

// GetOrCreateDirectChat returns the existing private chat between two
// users, creating one if none exists. A private chat has exactly two
// distinct participants.
func (r *ChatRoomRepository) GetOrCreateDirectChat(user1ID, user2ID uuid.UUID) (*models.ChatRoom, error) {
	query := `
		SELECT c.id, c.is_group, c.name, c.created_at
		FROM chat_rooms c
		INNER JOIN participants p1 ON c.id = p1.chat_room_id
		INNER JOIN participants p2 ON c.id = p2.chat_room_id
		WHERE c.is_group = false
		AND p1.user_id = $1
		AND p2.user_id = $2
		LIMIT 1
	`

	room := &models.ChatRoom{}
	err := r.db.QueryRow(query, user1ID, user2ID).Scan(&room.ID, &room.IsGroup, &room.Name, &room.CreatedAt)
	if err == nil {
		return room, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check existing chat: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	room.ID = uuid.New()
	room.IsGroup = false

	if _, err := tx.Exec(
		`INSERT INTO chat_rooms (id, is_group, created_at) VALUES ($1, $2, NOW())`,
		room.ID, room.IsGroup,
	); err != nil {
		return nil, fmt.Errorf("failed to create chat room: %w", err)
	}

	for _, uid := range []uuid.UUID{user1ID, user2ID} {
		if _, err := tx.Exec(
			`INSERT INTO participants (id, chat_room_id, user_id, joined_at) VALUES ($1, $2, $3, NOW())`,
			uuid.New(), room.ID, uid,
		); err != nil {
			return nil, fmt.Errorf("failed to add participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return r.GetByID(room.ID)
}
