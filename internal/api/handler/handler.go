package handler

import (
	"batchchat/backend/internal/chathub"
	"batchchat/backend/internal/models"
	"batchchat/backend/internal/roster"
	"batchchat/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Store is what the HTTP layer reads directly.
type Store interface {
	storage.RoomDirectory
	storage.MessageLog
	storage.ReadTracker
	storage.Presence
	GetBatch(ctx context.Context, batchID uint) (*models.Batch, error)
	Ping(ctx context.Context) error
}

// Handler holds the services behind the HTTP and WebSocket routes.
type Handler struct {
	Hub         *chathub.ManagerService
	Store       Store
	Batches     *roster.BatchService
	Enrollments *roster.EnrollmentService
	Sync        roster.Syncer
	Auth        *Auth
	Log         *slog.Logger

	// Per-connection settings of the real-time channel.
	SendBuffer int
	WriteWait  time.Duration
}

func NewHandler(hub *chathub.ManagerService, store Store, batches *roster.BatchService, enrollments *roster.EnrollmentService, sync roster.Syncer, auth *Auth, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		Hub:         hub,
		Store:       store,
		Batches:     batches,
		Enrollments: enrollments,
		Sync:        sync,
		Auth:        auth,
		Log:         log,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Health)

	api := r.Group("/api/v1")
	// The real-time channel authenticates through its token query parameter.
	api.GET("/chats/:chat_id/ws", h.ServeWebSocket)

	authed := api.Group("", h.Auth.Middleware())
	staff := authed.Group("", RequireRole(StaffRoles...))

	staff.POST("/batches", h.CreateBatch)
	staff.PUT("/batches/:batch_id", h.UpdateBatch)
	staff.DELETE("/batches/:batch_id", h.DeleteBatch)
	staff.POST("/batches/:batch_id/members", h.AddBatchMember)
	staff.DELETE("/batches/:batch_id/members/:user_id", h.RemoveBatchMember)
	authed.GET("/batches/:batch_id/members", h.ListBatchMembers)

	authed.POST("/enrollments", h.Enroll)
	authed.GET("/enrollments", h.ListEnrollments)

	staff.POST("/chats/sync/:batch_id", h.SyncBatchChat)
	authed.POST("/chats", h.CreateChat)
	authed.GET("/chats", h.ListChats)
	authed.GET("/chats/:chat_id", h.GetChat)
	authed.GET("/chats/:chat_id/members", h.ListChatMembers)
	authed.GET("/chats/:chat_id/messages", h.ListMessages)
	authed.POST("/chats/:chat_id/messages", h.SendMessage)
	authed.POST("/chats/:chat_id/messages/:message_id/read", h.MarkRead)
	authed.GET("/chats/:chat_id/online", h.Online)
}

// Health reports whether the stores are reachable, along with hub counters.
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{
		"connections":    h.Hub.Registry.Total(),
		"dropped_frames": h.Hub.DroppedFrames(),
	}
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		body["status"] = "unavailable"
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ok"
	c.JSON(http.StatusOK, body)
}

// respondError maps the shared error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, fmt.Errorf("%w: %v", models.ErrValidation, err))
}

// idParam parses a numeric path parameter, answering 400 when it is not one.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, fmt.Errorf("%s must be a positive integer", name))
		return 0, false
	}
	return uint(id), true
}

func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, fmt.Errorf("%s must be a non-negative integer", name))
		return 0, false
	}
	return v, true
}
