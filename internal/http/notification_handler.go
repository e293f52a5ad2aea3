package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freelancedao/escrow-service/internal/service"
)

func (h *Handler) listNotifications(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	list, err := h.notifications.List(c.Request.Context(), service.ListNotificationsInput{
		Limit:      queryInt(c, "limit", 50),
		UnreadOnly: c.Query("unread") == "true",
	}, actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type markReadRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

func (h *Handler) markNotificationsRead(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			badRequest(c, "invalid notification id "+raw)
			return
		}
		ids = append(ids, id)
	}

	updated, err := h.notifications.MarkRead(c.Request.Context(), ids, req.All, actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
