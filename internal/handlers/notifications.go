package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/boardhub/boardhub/internal/notifications"
	appErrors "github.com/boardhub/boardhub/pkg/errors"
	"github.com/boardhub/boardhub/pkg/response"
)

// NotificationHandler serves the notification inbox and the live stream.
type NotificationHandler struct {
	notifier *notifications.Notifier
}

// NewNotificationHandler constructs a NotificationHandler instance.
func NewNotificationHandler(notifier *notifications.Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

// GET /api/notifications?unread=true
func (h *NotificationHandler) List(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"

	items, err := h.notifier.ListForUser(requestContext(c), currentUserID(c), unreadOnly)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"notifications": items})
}

// POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	err := h.notifier.MarkRead(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"read": true})
}

// GET /api/notifications/stream
func (h *NotificationHandler) Stream(c *gin.Context) {
	h.notifier.Hub().Serve(currentUserID(c), c.Writer, c.Request)
}
