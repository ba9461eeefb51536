package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/am4rknvl/chatcore/internal/models"
	"github.com/am4rknvl/chatcore/internal/services"
	"github.com/am4rknvl/chatcore/internal/session"
)

// DeliveryEngine is C7: given a bus event, it enumerates the chat's
// members and either sends to a locally-connected socket or enqueues the
// event offline.
type DeliveryEngine struct {
	registry *Registry
	store    *session.Store
	messages *services.MessageService
}

func NewDeliveryEngine(registry *Registry, store *session.Store, messages *services.MessageService) *DeliveryEngine {
	return &DeliveryEngine{registry: registry, store: store, messages: messages}
}

// Handle processes one bus arrival for chatRoomID. senderID, if present in
// the envelope, is skipped — the sender doesn't receive an echo of its
// own publish, only the fan-out to other members.
func (e *DeliveryEngine) Handle(ctx context.Context, chatRoomID uuid.UUID, payload json.RawMessage) {
	var envelope models.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		log.Warn().Err(err).Msg("delivery engine: malformed envelope")
		return
	}

	members, err := e.store.ChatMembers(ctx, chatRoomID)
	if err != nil {
		log.Warn().Err(err).Str("chat_id", chatRoomID.String()).Msg("delivery engine: degraded, chat_members read failed")
		return
	}
	if len(members) == 0 {
		return
	}

	var senderID uuid.UUID
	var messageID uuid.UUID
	if envelope.Message != nil {
		senderID = envelope.Message.SenderID
		messageID = envelope.Message.ID
	} else {
		messageID = envelope.MessageID
	}

	for _, uid := range members {
		if uid == senderID {
			continue
		}
		e.deliverToMember(ctx, uid, messageID, payload)
	}
}

func (e *DeliveryEngine) deliverToMember(ctx context.Context, uid, messageID uuid.UUID, payload json.RawMessage) {
	conn, ok := e.registry.Get(uid)
	if !ok {
		e.enqueueOffline(ctx, uid, payload)
		return
	}

	if !conn.Enqueue(payload) {
		// Dead or overwhelmed local socket: treat as disconnected.
		e.registry.Unregister(conn)
		e.enqueueOffline(ctx, uid, payload)
		return
	}

	if messageID != uuid.Nil {
		if _, err := e.messages.MarkDelivered(messageID, uid); err != nil {
			log.Warn().Err(err).Str("message_id", messageID.String()).Str("uid", uid.String()).Msg("failed to mark delivered")
		}
	}
}

func (e *DeliveryEngine) enqueueOffline(ctx context.Context, uid uuid.UUID, payload json.RawMessage) {
	if err := e.store.StoreOffline(ctx, uid, payload); err != nil {
		log.Warn().Err(err).Str("uid", uid.String()).Msg("degraded mode: offline queueing skipped")
	}
}
