package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/am4rknvl/chatcore/internal/models"
	"github.com/am4rknvl/chatcore/internal/repository"
	"github.com/am4rknvl/chatcore/internal/session"
)

// ChatRoomHandler is the REST surface over chat room membership. Every
// mutation here must also update chat_members:{cid} in the Session Store
// so the Delivery Engine's fan-out target list stays current without a
// database round-trip per publish (§6).
type ChatRoomHandler struct {
	chatRooms *repository.ChatRoomRepository
	store     *session.Store
}

func NewChatRoomHandler(chatRooms *repository.ChatRoomRepository, store *session.Store) *ChatRoomHandler {
	return &ChatRoomHandler{chatRooms: chatRooms, store: store}
}

// CreateChatRoom creates a group chat, or returns the existing direct chat
// for a two-party, non-group request.
func (h *ChatRoomHandler) CreateChatRoom(c *gin.Context) {
	var req models.CreateChatRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, _ := c.Get("user_id")
	uid := userID.(uuid.UUID)
	ctx := c.Request.Context()

	if !req.IsGroup && len(req.Members) == 1 {
		room, err := h.chatRooms.GetOrCreateDirectChat(uid, req.Members[0])
		if err != nil {
			ErrorResponse(c, http.StatusInternalServerError, "failed to create chat room")
			return
		}
		h.syncMembers(ctx, room.ID, uid, req.Members[0])

		members, _ := h.chatRooms.GetMembers(room.ID)
		room.Members = members
		c.JSON(http.StatusOK, room)
		return
	}

	room := &models.ChatRoom{Name: req.Name, IsGroup: req.IsGroup}
	if err := h.chatRooms.Create(room); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "failed to create chat room")
		return
	}

	if err := h.chatRooms.AddParticipant(&models.Participant{ChatRoomID: room.ID, UserID: uid}); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "failed to add creator")
		return
	}
	if err := h.store.AddUserToChat(ctx, uid, room.ID); err != nil {
		ErrorResponse(c, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	for _, memberID := range req.Members {
		if memberID == uid {
			continue
		}
		if err := h.chatRooms.AddParticipant(&models.Participant{ChatRoomID: room.ID, UserID: memberID}); err != nil {
			continue
		}
		h.syncMemberStore(ctx, room.ID, memberID)
	}

	members, _ := h.chatRooms.GetMembers(room.ID)
	room.Members = members
	c.JSON(http.StatusCreated, room)
}

// ListChatRooms returns every chat room the current user participates in.
func (h *ChatRoomHandler) ListChatRooms(c *gin.Context) {
	userID, _ := c.Get("user_id")
	uid := userID.(uuid.UUID)

	rooms, err := h.chatRooms.GetByUserID(uid)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "failed to list chat rooms")
		return
	}

	for i := range rooms {
		members, _ := h.chatRooms.GetMembers(rooms[i].ID)
		rooms[i].Members = members
	}

	c.JSON(http.StatusOK, rooms)
}

// GetChatRoom returns a single chat room, if the caller is a participant.
func (h *ChatRoomHandler) GetChatRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid chat room id")
		return
	}

	userID, _ := c.Get("user_id")
	uid := userID.(uuid.UUID)

	isMember, err := h.chatRooms.IsParticipant(roomID, uid)
	if err != nil || !isMember {
		ErrorResponse(c, http.StatusForbidden, "access denied")
		return
	}

	room, err := h.chatRooms.GetByID(roomID)
	if err != nil {
		ErrorResponse(c, http.StatusNotFound, "chat room not found")
		return
	}

	members, _ := h.chatRooms.GetMembers(room.ID)
	room.Members = members
	c.JSON(http.StatusOK, room)
}

// AddParticipants adds members to a group chat room.
func (h *ChatRoomHandler) AddParticipants(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid chat room id")
		return
	}

	var req models.AddParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, _ := c.Get("user_id")
	uid := userID.(uuid.UUID)

	isMember, err := h.chatRooms.IsParticipant(roomID, uid)
	if err != nil || !isMember {
		ErrorResponse(c, http.StatusForbidden, "access denied")
		return
	}

	room, err := h.chatRooms.GetByID(roomID)
	if err != nil {
		ErrorResponse(c, http.StatusNotFound, "chat room not found")
		return
	}
	if !room.IsGroup {
		ErrorResponse(c, http.StatusBadRequest, "cannot add members to a direct chat")
		return
	}

	ctx := c.Request.Context()
	for _, memberID := range req.Members {
		if err := h.chatRooms.AddParticipant(&models.Participant{ChatRoomID: roomID, UserID: memberID}); err != nil {
			continue
		}
		h.syncMemberStore(ctx, roomID, memberID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RemoveParticipant removes a member from a chat room.
func (h *ChatRoomHandler) RemoveParticipant(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid chat room id")
		return
	}

	memberID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid user id")
		return
	}

	userID, _ := c.Get("user_id")
	uid := userID.(uuid.UUID)

	isMember, err := h.chatRooms.IsParticipant(roomID, uid)
	if err != nil || !isMember {
		ErrorResponse(c, http.StatusForbidden, "access denied")
		return
	}

	if err := h.chatRooms.RemoveParticipant(roomID, memberID); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "failed to remove participant")
		return
	}

	if err := h.store.RemoveUserFromChat(c.Request.Context(), memberID, roomID); err != nil {
		ErrorResponse(c, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ChatRoomHandler) syncMembers(ctx context.Context, roomID uuid.UUID, userIDs ...uuid.UUID) {
	for _, uid := range userIDs {
		h.syncMemberStore(ctx, roomID, uid)
	}
}

func (h *ChatRoomHandler) syncMemberStore(ctx context.Context, roomID, userID uuid.UUID) {
	_ = h.store.AddUserToChat(ctx, userID, roomID)
}
