package repository

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/am4rknvl/chatcore/internal/database"
)

// DeliveryRepository manages MessageDelivery rows: one per (message,
// recipient) pair, created alongside the message and flipped to
// delivered exactly once per recipient.
type DeliveryRepository struct {
	db *database.DB
}

func NewDeliveryRepository(db *database.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// CreateStubs inserts one undelivered row per recipient, skipping the
// sender. Invariant (a): a row exists iff the recipient is a participant
// and isn't the sender.
func (r *DeliveryRepository) CreateStubs(messageID uuid.UUID, recipientIDs []uuid.UUID) error {
	if len(recipientIDs) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, uid := range recipientIDs {
		if _, err := tx.Exec(
			`INSERT INTO message_deliveries (id, message_id, user_id, delivered_at)
			 VALUES (uuid_generate_v4(), $1, $2, NULL)
			 ON CONFLICT (message_id, user_id) DO NOTHING`,
			messageID, uid,
		); err != nil {
			return fmt.Errorf("failed to create delivery stub: %w", err)
		}
	}

	return tx.Commit()
}

// MarkDelivered flips delivered_at to NOW() only if it is currently null,
// so duplicate fan-out across instances can't overwrite an earlier mark.
// Returns whether the row actually changed.
func (r *DeliveryRepository) MarkDelivered(messageID, userID uuid.UUID) (bool, error) {
	result, err := r.db.Exec(
		`UPDATE message_deliveries
		 SET delivered_at = NOW()
		 WHERE message_id = $1 AND user_id = $2 AND delivered_at IS NULL`,
		messageID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark delivered: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}
