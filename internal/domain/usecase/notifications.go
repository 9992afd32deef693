package usecase

import (
	"context"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
)

type NotificationStore interface {
	Create(ctx context.Context, n *entity.Notification) error
	ListByUser(ctx context.Context, userID string) ([]entity.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type NotificationService struct {
	Notifications NotificationStore
}

func NewNotificationService(store NotificationStore) *NotificationService {
	return &NotificationService{Notifications: store}
}

func (s *NotificationService) List(ctx context.Context, userID string) ([]entity.Notification, error) {
	return s.Notifications.ListByUser(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	return s.Notifications.MarkRead(ctx, userID, id)
}
