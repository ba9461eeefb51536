// Package services implements the Message State Service (C8): the
// transactional boundary around messages, deliveries, reads, edits, and
// deletes. Publishing to the fan-out bus is the caller's responsibility,
// which keeps this package testable without a running Redis.
package services

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/am4rknvl/chatcore/internal/apperr"
	"github.com/am4rknvl/chatcore/internal/models"
	"github.com/am4rknvl/chatcore/internal/repository"
)

type MessageService struct {
	messages   *repository.MessageRepository
	deliveries *repository.DeliveryRepository
	chatRooms  *repository.ChatRoomRepository
}

func NewMessageService(
	messages *repository.MessageRepository,
	deliveries *repository.DeliveryRepository,
	chatRooms *repository.ChatRoomRepository,
) *MessageService {
	return &MessageService{messages: messages, deliveries: deliveries, chatRooms: chatRooms}
}

// SendMessage authorizes the sender, persists the message, and creates one
// undelivered MessageDelivery row per other participant. It does not
// publish — the caller publishes the returned message to the bus once
// persistence has succeeded.
func (s *MessageService) SendMessage(chatRoomID, senderID uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n < models.MinContentLength || n > models.MaxContentLength {
		return nil, apperr.New(apperr.KindValidation, "content must be 1-2000 characters")
	}

	isMember, err := s.chatRooms.IsParticipant(chatRoomID, senderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "check membership", err)
	}
	if !isMember {
		return nil, apperr.New(apperr.KindForbidden, "sender is not a participant of this chat")
	}

	message := &models.Message{ChatRoomID: chatRoomID, SenderID: senderID, Content: content}
	if err := s.messages.Create(message); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "create message", err)
	}

	participantIDs, err := s.chatRooms.GetParticipantUserIDs(chatRoomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list participants", err)
	}

	recipients := make([]uuid.UUID, 0, len(participantIDs))
	for _, uid := range participantIDs {
		if uid != senderID {
			recipients = append(recipients, uid)
		}
	}

	if err := s.deliveries.CreateStubs(message.ID, recipients); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "create delivery stubs", err)
	}

	return message, nil
}

// GetChatMessages authorizes membership and returns messages newest-first.
func (s *MessageService) GetChatMessages(chatRoomID, userID uuid.UUID, limit, offset int) ([]models.Message, error) {
	isMember, err := s.chatRooms.IsParticipant(chatRoomID, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "check membership", err)
	}
	if !isMember {
		return nil, apperr.New(apperr.KindForbidden, "not a participant of this chat")
	}

	messages, err := s.messages.GetByChatRoomID(chatRoomID, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list messages", err)
	}

	return messages, nil
}

// MarkDelivered flips a single recipient's delivery row, guarded by
// delivered_at IS NULL so duplicate fan-out across instances is a no-op.
func (s *MessageService) MarkDelivered(messageID, userID uuid.UUID) (bool, error) {
	changed, err := s.deliveries.MarkDelivered(messageID, userID)
	if err != nil {
		return false, apperr.Wrap(apperr.KindInternal, "mark delivered", err)
	}
	return changed, nil
}

// MarkMessagesAsRead batch-marks read_at for the given ids, enforcing
// reader != sender, reader is a participant, and read_at currently null.
// Returns the number of rows actually changed.
func (s *MessageService) MarkMessagesAsRead(ids []uuid.UUID, readerID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	count, err := s.messages.MarkReadBatch(ids, readerID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "mark messages read", err)
	}
	if count > 0 {
		if err := s.messages.RecordReads(ids, readerID); err != nil {
			return count, apperr.Wrap(apperr.KindInternal, "record read receipts", err)
		}
	}

	return count, nil
}

// DeleteMessage soft-deletes a message. Errors: not_found (missing or
// already deleted), forbidden (caller isn't the sender).
func (s *MessageService) DeleteMessage(messageID, userID uuid.UUID) error {
	msg, err := s.messages.GetByID(messageID)
	if err != nil {
		return apperr.New(apperr.KindNotFound, "message not found")
	}
	if msg.IsDeleted {
		return apperr.New(apperr.KindNotFound, "message not found")
	}
	if msg.SenderID != userID {
		return apperr.New(apperr.KindForbidden, "not the sender")
	}

	ok, err := s.messages.SoftDelete(messageID, userID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "delete message", err)
	}
	if !ok {
		return apperr.New(apperr.KindNotFound, "message not found")
	}

	return nil
}

// EditMessage inserts a MessageEdit row and updates content + is_edited.
// Errors: not_found (missing or already deleted), forbidden (caller isn't
// the original sender).
func (s *MessageService) EditMessage(messageID, userID uuid.UUID, newContent string) error {
	newContent = strings.TrimSpace(newContent)
	if n := utf8.RuneCountInString(newContent); n < models.MinContentLength || n > models.MaxContentLength {
		return apperr.New(apperr.KindValidation, "content must be 1-2000 characters")
	}

	msg, err := s.messages.GetByID(messageID)
	if err != nil {
		return apperr.New(apperr.KindNotFound, "message not found")
	}
	if msg.IsDeleted {
		return apperr.New(apperr.KindNotFound, "message not found")
	}
	if msg.SenderID != userID {
		return apperr.New(apperr.KindForbidden, "not the sender")
	}

	if err := s.messages.EditContent(messageID, userID, newContent); err != nil {
		return apperr.Wrap(apperr.KindInternal, "edit message", err)
	}

	return nil
}
