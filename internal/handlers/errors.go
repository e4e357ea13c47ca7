package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/repositories"
)

// writeError maps repository sentinels onto the HTTP taxonomy: not_found,
// forbidden, conflict, invalid_input. Anything unmapped is an internal error.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrChatNotFound),
		errors.Is(err, repositories.ErrMemberNotFound),
		errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrUserNotFound),
		errors.Is(err, repositories.ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error_kind": "not_found", "error": err.Error()})
	case errors.Is(err, repositories.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error_kind": "forbidden", "error": err.Error()})
	case errors.Is(err, repositories.ErrAlreadyMember),
		errors.Is(err, repositories.ErrAlreadyPinned),
		errors.Is(err, repositories.ErrAlreadyUnpinned),
		errors.Is(err, repositories.ErrPinLimitExceeded):
		c.JSON(http.StatusConflict, gin.H{"error_kind": "conflict", "error": err.Error()})
	case errors.Is(err, repositories.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error_kind": "invalid_input", "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error_kind": "internal", "error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error_kind": "invalid_input", "error": msg})
}

func forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, gin.H{"error_kind": "forbidden", "error": msg})
}
