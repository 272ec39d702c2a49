package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/apperr"
	"go.uber.org/zap"
)

// StatusOf maps an apperr kind to its HTTP status. Anything unclassified is
// a server fault.
func StatusOf(err error) int {
	switch kind := apperr.KindOf(err); {
	case errors.Is(kind, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(kind, apperr.ErrPermission):
		return http.StatusForbidden
	case errors.Is(kind, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, apperr.ErrConsistency):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ...}. Server faults are logged with their
// cause and answered with a generic message.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

// uuidParam parses the :name path parameter, answering 400 when malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}
