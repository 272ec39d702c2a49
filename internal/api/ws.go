package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/middleware"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/lalith-99/huddle/internal/realtime"
	"go.uber.org/zap"
)

type RoleChecker interface {
	SpaceRole(ctx context.Context, userID, spaceID uuid.UUID) (models.Role, error)
}

// WSHandler upgrades space event feeds to websockets.
type WSHandler struct {
	svc    RoleChecker
	hub    *realtime.Hub
	logger *zap.Logger
}

func NewWSHandler(svc RoleChecker, hub *realtime.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{svc: svc, hub: hub, logger: logger}
}

// Subscribe handles GET /v1/spaces/:id/ws
//
// Membership is checked once at connect time.
func (h *WSHandler) Subscribe(c *gin.Context) {
	spaceID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)
	if _, err := h.svc.SpaceRole(c.Request.Context(), userID, spaceID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	conn, err := realtime.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	h.hub.Serve(conn, realtime.NewClient(spaceID, userID))
}
