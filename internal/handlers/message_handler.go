package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/am4rknvl/chatcore/internal/apperr"
	"github.com/am4rknvl/chatcore/internal/models"
	"github.com/am4rknvl/chatcore/internal/services"
	"github.com/am4rknvl/chatcore/internal/session"
)

// MessageHandler is the REST surface over message history and the
// read/delete/edit operations. Sending over REST still goes through the
// same MessageService the realtime path uses, and publishes the result to
// the bus itself — publishing is the caller's responsibility (§4.8), and
// here the caller is this handler rather than a Connection.
type MessageHandler struct {
	messages *services.MessageService
	bus      *session.Bus
}

func NewMessageHandler(messages *services.MessageService, bus *session.Bus) *MessageHandler {
	return &MessageHandler{messages: messages, bus: bus}
}

// GetMessages returns a page of message history for a chat room.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	var req models.GetMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Limit == 0 {
		req.Limit = 50
	}

	userID, _ := c.Get("user_id")
	uid := userID.(uuid.UUID)

	msgs, err := h.messages.GetChatMessages(req.ChatRoomID, uid, req.Limit, req.Offset)
	if err != nil {
		respondServiceErr(c, err)
		return
	}

	c.JSON(http.StatusOK, msgs)
}

// SendMessage sends a message over REST, for clients without an open
// socket. It persists through the same path as the realtime handler and
// publishes the result so connected members still receive it live.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, _ := c.Get("user_id")
	uid := userID.(uuid.UUID)

	msg, err := h.messages.SendMessage(req.ChatRoomID, uid, req.Content)
	if err != nil {
		respondServiceErr(c, err)
		return
	}

	envelope := models.Envelope{
		Type:       models.FrameMessage,
		ChatRoomID: msg.ChatRoomID,
		Message:    msg,
	}
	if err := h.bus.PublishToChatRetry(c.Request.Context(), msg.ChatRoomID, envelope); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID.String()).Msg("failed to publish REST-sent message to bus")
	}

	c.JSON(http.StatusCreated, msg)
}

// MarkMessagesAsRead marks a batch of messages read on behalf of the caller.
func (h *MessageHandler) MarkMessagesAsRead(c *gin.Context) {
	var req models.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, _ := c.Get("user_id")
	uid := userID.(uuid.UUID)

	count, err := h.messages.MarkMessagesAsRead(req.MessageIDs, uid)
	if err != nil {
		respondServiceErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": count})
}

// DeleteMessage soft-deletes a message the caller sent.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid message id")
		return
	}

	userID, _ := c.Get("user_id")
	uid := userID.(uuid.UUID)

	if err := h.messages.DeleteMessage(messageID, uid); err != nil {
		respondServiceErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// EditMessage edits a message the caller sent and republishes it so
// connected members see the update live.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid message id")
		return
	}

	var req models.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, _ := c.Get("user_id")
	uid := userID.(uuid.UUID)

	if err := h.messages.EditMessage(messageID, uid, req.Content); err != nil {
		respondServiceErr(c, err)
		return
	}

	now := time.Now()
	envelope := models.Envelope{
		Type:       models.FrameMessageEdited,
		ChatRoomID: req.ChatRoomID,
		MessageID:  messageID,
		NewContent: req.Content,
		EditedAt:   &now,
	}
	if err := h.bus.PublishToChatRetry(c.Request.Context(), req.ChatRoomID, envelope); err != nil {
		log.Error().Err(err).Str("message_id", messageID.String()).Msg("failed to publish REST-edited message to bus")
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func respondServiceErr(c *gin.Context, err error) {
	switch {
	case apperr.Is(err, apperr.KindForbidden):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case apperr.Is(err, apperr.KindNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case apperr.Is(err, apperr.KindValidation):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case apperr.Is(err, apperr.KindRateLimited):
		ErrorResponse(c, http.StatusTooManyRequests, err.Error())
	default:
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
	}
}
