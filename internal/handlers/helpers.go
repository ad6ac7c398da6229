package handlers

import (
	"errors"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

// respondError maps a service error onto the wire. Typed errors carry their
// own status and code; anything else is a 500 with a generic message so
// internals never leak.
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.Exception
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode, gin.H{
			"error":   appErr.Code,
			"message": appErr.Message,
		})
		return
	}
	c.JSON(500, gin.H{
		"error":   "internal_error",
		"message": "failed to process request",
	})
}

// currentUserID reads the authenticated user id placed by the auth
// middleware. The bool result is false only when the middleware did not run.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString(middleware.ContextUserID)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil {
		respondError(c, apperrors.ErrValidation.WithMessage("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func unauthenticated(c *gin.Context) {
	c.JSON(401, gin.H{
		"error":   "unauthenticated",
		"message": "User not authenticated",
	})
}
