package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// AttachmentHandler serves a chat's media and link galleries.
type AttachmentHandler struct {
	members     repositories.MemberRepository
	attachments repositories.AttachmentRepository
}

// NewAttachmentHandler builds an AttachmentHandler.
func NewAttachmentHandler(members repositories.MemberRepository, attachments repositories.AttachmentRepository) *AttachmentHandler {
	return &AttachmentHandler{members: members, attachments: attachments}
}

func idWindow(c *gin.Context) (fromID, toID *int64, limit int) {
	if raw := c.Query("from_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			fromID = &id
		}
	}
	if raw := c.Query("to_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			toID = &id
		}
	}
	limit, _ = strconv.Atoi(c.Query("limit"))
	return fromID, toID, limit
}

// ListMedia pages one media type (IMAGE, VIDEO or FILE) of a chat.
func (h *AttachmentHandler) ListMedia(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	attachmentType := models.AttachmentType(c.Query("type"))
	if !models.ValidAttachmentType(attachmentType) {
		badRequest(c, "type must be IMAGE, VIDEO or FILE")
		return
	}

	userID := c.GetInt64("userID")
	if _, err := h.members.GetMember(c.Request.Context(), chatID, userID); err != nil {
		writeError(c, err)
		return
	}

	fromID, toID, limit := idWindow(c)
	media, err := h.attachments.ListMedia(c.Request.Context(), chatID, attachmentType, fromID, toID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": media})
}

// ListLinks pages the links extracted from a chat's messages.
func (h *AttachmentHandler) ListLinks(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt64("userID")
	if _, err := h.members.GetMember(c.Request.Context(), chatID, userID); err != nil {
		writeError(c, err)
		return
	}

	fromID, toID, limit := idWindow(c)
	links, err := h.attachments.ListLinks(c.Request.Context(), chatID, fromID, toID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}
