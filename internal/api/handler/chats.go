package handler

import (
	"batchchat/backend/internal/config"
	"batchchat/backend/internal/models"
	"batchchat/backend/internal/storage"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type chatMemberRequest struct {
	UserID string          `json:"user_id" binding:"required"`
	Role   models.RoomRole `json:"role"`
	RoleID *uint           `json:"role_id"`
}

type createChatRequest struct {
	Name           string              `json:"name"`
	Type           models.RoomType     `json:"chat_type"`
	BatchID        *uint               `json:"batch_id"`
	InitialMembers []chatMemberRequest `json:"initial_members" binding:"dive"`
}

type sendMessageRequest struct {
	Message string `json:"message" binding:"required"`
	BatchID *uint  `json:"batch_id"`
}

// SyncBatchChat creates the batch room if needed and adds missing members.
// Failures on individual members are reported in the body, not as an error.
func (h *Handler) SyncBatchChat(c *gin.Context) {
	batchID, ok := idParam(c, "batch_id")
	if !ok {
		return
	}
	if _, err := h.Store.GetBatch(c.Request.Context(), batchID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Sync.Sync(c.Request.Context(), batchID, currentUser(c)))
}

// CreateChat opens an ad-hoc room. The caller joins it as admin.
func (h *Handler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Type == "" {
		req.Type = models.RoomGroup
	}
	if req.Type != models.RoomGroup && req.Type != models.RoomDirect {
		badRequest(c, fmt.Errorf("unknown chat_type %q", req.Type))
		return
	}

	caller := currentUser(c)
	members := []models.RoomMember{{UserID: caller, Role: models.RoomRoleAdmin}}
	for _, m := range req.InitialMembers {
		role := m.Role
		if role == "" {
			role = models.RoomRoleStudent
		}
		if role != models.RoomRoleStudent && role != models.RoomRoleTeacher && role != models.RoomRoleAdmin {
			badRequest(c, fmt.Errorf("unknown role %q", m.Role))
			return
		}
		members = append(members, models.RoomMember{UserID: m.UserID, Role: role, RoleID: m.RoleID})
	}
	members = lo.UniqBy(members, func(m models.RoomMember) string { return m.UserID })
	if req.Type == models.RoomDirect && len(members) != 2 {
		badRequest(c, fmt.Errorf("a direct chat has exactly two members"))
		return
	}

	room, _, err := h.Store.CreateRoom(c.Request.Context(), storage.RoomSpec{
		Name:      req.Name,
		Type:      req.Type,
		BatchID:   req.BatchID,
		CreatorID: caller,
		Members:   members,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

// ListChats returns the caller's rooms.
func (h *Handler) ListChats(c *gin.Context) {
	offset, ok := intQuery(c, "offset", 0)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", config.DefaultPageSize)
	if !ok {
		return
	}
	rooms, err := h.Store.ListRoomsForUser(c.Request.Context(), currentUser(c), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *Handler) GetChat(c *gin.Context) {
	roomID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	room, err := h.Store.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	members, err := h.Store.ListMembers(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	room.Members = members
	c.JSON(http.StatusOK, room)
}

func (h *Handler) ListChatMembers(c *gin.Context) {
	roomID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	if _, err := h.Store.GetRoom(c.Request.Context(), roomID); err != nil {
		respondError(c, err)
		return
	}
	members, err := h.Store.ListMembers(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// ListMessages pages through a room newest first. "before" is a sequence number.
func (h *Handler) ListMessages(c *gin.Context) {
	roomID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	var before uint64
	if raw := c.Query("before"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, fmt.Errorf("before must be a sequence number"))
			return
		}
		before = v
	}
	limit, ok := intQuery(c, "limit", config.DefaultPageSize)
	if !ok {
		return
	}
	if _, err := h.Store.GetRoom(c.Request.Context(), roomID); err != nil {
		respondError(c, err)
		return
	}
	msgs, err := h.Store.List(c.Request.Context(), roomID, before, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(msgs, func(m models.Message, _ int) models.OutboundFrame {
		return models.NewOutboundFrame(&m)
	}))
}

// SendMessage stores a message from the caller and fans it out to the room's
// live connections before answering.
func (h *Handler) SendMessage(c *gin.Context) {
	roomID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sender := currentUser(c)
	msg, err := h.Hub.Publish(c.Request.Context(), models.AppendRequest{
		RoomID:   roomID,
		SenderID: &sender,
		Body:     req.Message,
		BatchID:  req.BatchID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewOutboundFrame(msg))
}

func (h *Handler) MarkRead(c *gin.Context) {
	roomID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	messageID, ok := idParam(c, "message_id")
	if !ok {
		return
	}
	marker, err := h.Store.MarkRead(c.Request.Context(), messageID, currentUser(c), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, marker)
}

// Online lists the users connected to a room right now.
func (h *Handler) Online(c *gin.Context) {
	roomID, ok := idParam(c, "chat_id")
	if !ok {
		return
	}
	users, err := h.Store.OnlineUsers(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_id":     roomID,
		"online":      users,
		"connections": h.Hub.Registry.Count(roomID),
	})
}
