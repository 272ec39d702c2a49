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

type SpaceService interface {
	GetSpace(ctx context.Context, userID, spaceID uuid.UUID) (*models.Space, error)
	ListMembers(ctx context.Context, userID, spaceID uuid.UUID) ([]models.Member, error)
}

// SpaceHandler serves the read-only space views: the space with its role
// list, and the roster used for mentions.
type SpaceHandler struct {
	svc    SpaceService
	logger *zap.Logger
}

func NewSpaceHandler(svc SpaceService, logger *zap.Logger) *SpaceHandler {
	return &SpaceHandler{svc: svc, logger: logger}
}

// Get handles GET /v1/spaces/:id
func (h *SpaceHandler) Get(c *gin.Context) {
	spaceID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	sp, err := h.svc.GetSpace(c.Request.Context(), middleware.GetUserID(c), spaceID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

// ListMembers handles GET /v1/spaces/:id/members
func (h *SpaceHandler) ListMembers(c *gin.Context) {
	spaceID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	members, err := h.svc.ListMembers(c.Request.Context(), middleware.GetUserID(c), spaceID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, members)
}
