package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
)

type NotificationUseCase interface {
	List(ctx context.Context, userID string) ([]entity.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type NotificationHandler struct {
	UseCase NotificationUseCase
}

func NewNotificationHandler(uc NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{UseCase: uc}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetString("user_id")

	notifications, err := h.UseCase.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.GetString("user_id")
	id := c.Param("notification_id")

	if err := h.UseCase.MarkRead(c.Request.Context(), userID, id); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
