package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/middleware"
	"github.com/lalith-99/huddle/internal/models"
	"go.uber.org/zap"
)

type MessageService interface {
	ListMessages(ctx context.Context, userID, channelID uuid.UUID, before int64, limit int) ([]models.Message, error)
	SendMessage(ctx context.Context, userID, channelID uuid.UUID, req models.CreateMessageRequest) (*models.Message, error)
	EditMessage(ctx context.Context, userID uuid.UUID, messageID int64, text string) (*models.Message, error)
	DeleteMessage(ctx context.Context, userID uuid.UUID, messageID int64) (*models.Message, error)
	ForwardMessage(ctx context.Context, userID uuid.UUID, messageID int64, targetChannelID uuid.UUID) (*models.Message, error)
}

type MessageHandler struct {
	svc    MessageService
	logger *zap.Logger
}

func NewMessageHandler(svc MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

type editMessageRequest struct {
	Text string `json:"text"`
}

type forwardMessageRequest struct {
	ChannelID uuid.UUID `json:"channel_id" binding:"required"`
}

// Create handles POST /v1/channels/:id/messages
//
// The sender is always the authenticated user; a sender_id in the body is
// ignored.
func (h *MessageHandler) Create(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), middleware.GetUserID(c), channelID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// List handles GET /v1/channels/:id/messages?before=123&limit=50
//
// Cursor-based pagination:
//   - "before" = message ID. "Give me messages older than this." 0 = start from latest.
//   - "limit"  = how many to return. Default 50, capped at 100.
//
// The page is returned oldest first.
func (h *MessageHandler) List(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var before int64
	if b := c.Query("before"); b != "" {
		var err error
		before, err = strconv.ParseInt(b, 10, 64)
		if err != nil || before < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'before' parameter"})
			return
		}
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
	}

	messages, err := h.svc.ListMessages(c.Request.Context(), middleware.GetUserID(c), channelID, before, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// Update handles PATCH /v1/messages/:id
func (h *MessageHandler) Update(c *gin.Context) {
	messageID, ok := messageParam(c)
	if !ok {
		return
	}
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.EditMessage(c.Request.Context(), middleware.GetUserID(c), messageID, req.Text)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Delete handles DELETE /v1/messages/:id
//
// Deletion is soft, so the tombstone is returned: clients need
// deleted_by_role to render the placeholder.
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := messageParam(c)
	if !ok {
		return
	}
	msg, err := h.svc.DeleteMessage(c.Request.Context(), middleware.GetUserID(c), messageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Forward handles POST /v1/messages/:id/forward
func (h *MessageHandler) Forward(c *gin.Context) {
	messageID, ok := messageParam(c)
	if !ok {
		return
	}
	var req forwardMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.ForwardMessage(c.Request.Context(), middleware.GetUserID(c), messageID, req.ChannelID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func messageParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return 0, false
	}
	return id, true
}
