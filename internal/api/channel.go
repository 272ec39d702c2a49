package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/middleware"
	"github.com/lalith-99/huddle/internal/models"
	"go.uber.org/zap"
)

type ChannelService interface {
	ListChannels(ctx context.Context, userID, spaceID uuid.UUID) ([]models.Channel, error)
	GetChannel(ctx context.Context, userID, channelID uuid.UUID) (*models.Channel, error)
	CreateChannel(ctx context.Context, userID, spaceID uuid.UUID, name, description string) (*models.Channel, error)
	UpdateChannel(ctx context.Context, userID, channelID uuid.UUID, name, description string) (*models.Channel, error)
	DeleteChannel(ctx context.Context, userID, channelID uuid.UUID) error
}

// ChannelHandler holds the dependencies needed to handle channel requests.
type ChannelHandler struct {
	svc    ChannelService
	logger *zap.Logger
}

func NewChannelHandler(svc ChannelService, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{svc: svc, logger: logger}
}

// channelRequest is the body of channel create and update. Name rules are
// enforced by the service so clients get the same messages everywhere.
type channelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /v1/spaces/:id/channels
func (h *ChannelHandler) Create(c *gin.Context) {
	spaceID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ch, err := h.svc.CreateChannel(c.Request.Context(), middleware.GetUserID(c), spaceID, req.Name, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// List handles GET /v1/spaces/:id/channels
func (h *ChannelHandler) List(c *gin.Context) {
	spaceID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	channels, err := h.svc.ListChannels(c.Request.Context(), middleware.GetUserID(c), spaceID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// GetByID handles GET /v1/channels/:id
func (h *ChannelHandler) GetByID(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ch, err := h.svc.GetChannel(c.Request.Context(), middleware.GetUserID(c), channelID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Update handles PATCH /v1/channels/:id
func (h *ChannelHandler) Update(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ch, err := h.svc.UpdateChannel(c.Request.Context(), middleware.GetUserID(c), channelID, req.Name, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Delete handles DELETE /v1/channels/:id
func (h *ChannelHandler) Delete(c *gin.Context) {
	channelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteChannel(c.Request.Context(), middleware.GetUserID(c), channelID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
