package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/am4rknvl/chatcore/internal/database"
	"github.com/am4rknvl/chatcore/internal/models"
)

type MessageRepository struct {
	db *database.DB
}

func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message.
func (r *MessageRepository) Create(message *models.Message) error {
	query := `
		INSERT INTO messages (id, chat_room_id, sender_id, content, created_at, is_deleted, is_edited)
		VALUES (uuid_generate_v4(), $1, $2, $3, NOW(), false, false)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(query, message.ChatRoomID, message.SenderID, message.Content).
		Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// GetByID retrieves a message by id, deleted or not.
func (r *MessageRepository) GetByID(id uuid.UUID) (*models.Message, error) {
	query := `
		SELECT id, chat_room_id, sender_id, content, created_at, read_at, is_deleted, is_edited
		FROM messages
		WHERE id = $1
	`

	msg := &models.Message{}
	err := r.db.QueryRow(query, id).Scan(
		&msg.ID, &msg.ChatRoomID, &msg.SenderID, &msg.Content, &msg.CreatedAt, &msg.ReadAt, &msg.IsDeleted, &msg.IsEdited,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("message not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// GetByChatRoomID returns messages newest-first, including soft-deleted
// ones so clients can render tombstones (§4.8: get_chat_messages).
func (r *MessageRepository) GetByChatRoomID(chatRoomID uuid.UUID, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	query := `
		SELECT id, chat_room_id, sender_id, content, created_at, read_at, is_deleted, is_edited
		FROM messages
		WHERE chat_room_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(query, chatRoomID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID, &msg.ChatRoomID, &msg.SenderID, &msg.Content, &msg.CreatedAt, &msg.ReadAt, &msg.IsDeleted, &msg.IsEdited,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// MarkReadBatch sets read_at = NOW() for every id in ids where the reader
// is not the sender, is a participant of the message's chat, and read_at
// is currently null. Returns the number of rows actually changed.
func (r *MessageRepository) MarkReadBatch(ids []uuid.UUID, readerID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	query := `
		UPDATE messages m
		SET read_at = NOW()
		WHERE m.id = ANY($1)
		AND m.sender_id != $2
		AND m.read_at IS NULL
		AND EXISTS (
			SELECT 1 FROM participants p
			WHERE p.chat_room_id = m.chat_room_id AND p.user_id = $2
		)
	`

	result, err := r.db.Exec(query, pq.Array(idStrings), readerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}

	return result.RowsAffected()
}

// RecordReads inserts one MessageRead row per id, ignoring duplicates.
// Called alongside MarkReadBatch to keep a per-reader receipt history.
func (r *MessageRepository) RecordReads(ids []uuid.UUID, readerID uuid.UUID) error {
	for _, id := range ids {
		_, err := r.db.Exec(
			`INSERT INTO message_reads (id, message_id, user_id, read_at)
			 VALUES (uuid_generate_v4(), $1, $2, NOW())
			 ON CONFLICT (message_id, user_id) DO NOTHING`,
			id, readerID,
		)
		if err != nil {
			return fmt.Errorf("failed to record read receipt: %w", err)
		}
	}
	return nil
}

// SoftDelete marks a message deleted, preserving the row for receipt
// consistency. Returns false if the message doesn't exist or isn't owned
// by userID.
func (r *MessageRepository) SoftDelete(id, userID uuid.UUID) (bool, error) {
	result, err := r.db.Exec(
		`UPDATE messages SET is_deleted = true WHERE id = $1 AND sender_id = $2 AND is_deleted = false`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// EditContent updates content, flips is_edited, and records the edit in a
// single transaction so the history row and the visible content never
// diverge.
func (r *MessageRepository) EditContent(id, editorID uuid.UUID, newContent string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var oldContent string
	err = tx.QueryRow(`SELECT content FROM messages WHERE id = $1 FOR UPDATE`, id).Scan(&oldContent)
	if err != nil {
		return fmt.Errorf("failed to read message for edit: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE messages SET content = $1, is_edited = true WHERE id = $2`,
		newContent, id,
	); err != nil {
		return fmt.Errorf("failed to update message content: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO message_edits (id, message_id, editor_id, old_content, new_content, edited_at)
		 VALUES (uuid_generate_v4(), $1, $2, $3, $4, NOW())`,
		id, editorID, oldContent, newContent,
	); err != nil {
		return fmt.Errorf("failed to record message edit: %w", err)
	}

	return tx.Commit()
}
