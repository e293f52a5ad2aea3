package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freelancedao/escrow-service/internal/model"
	"github.com/freelancedao/escrow-service/internal/repository"
)

const maxNotificationPage = 100

type NotificationService struct {
	notifications *repository.NotificationRepository
	now           func() time.Time
}

func NewNotificationService(notifications *repository.NotificationRepository) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type ListNotificationsInput struct {
	Limit      int
	UnreadOnly bool
}

type NotificationList struct {
	Items       []model.Notification `json:"items"`
	UnreadCount int64                `json:"unread_count"`
}

// List returns the actor's most recent notifications, newest first, with the
// actor's total unread count.
func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput, actor model.Actor) (*NotificationList, error) {
	limit := input.Limit
	if limit > maxNotificationPage {
		limit = maxNotificationPage
	}
	items, err := s.notifications.ListByRecipient(ctx, repository.NotificationFilter{
		RecipientID: actor.ID,
		UnreadOnly:  input.UnreadOnly,
		Limit:       limit,
	})
	if err != nil {
		return nil, err
	}
	unread, err := s.notifications.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return &NotificationList{Items: items, UnreadCount: unread}, nil
}

// MarkRead marks the given notifications, or all of them when all is set, as
// read for the actor. It returns how many were changed.
func (s *NotificationService) MarkRead(ctx context.Context, ids []uuid.UUID, all bool, actor model.Actor) (int64, error) {
	if !all && len(ids) == 0 {
		return 0, fmt.Errorf("%w: notification ids or all is required", ErrInvalidInput)
	}
	if all {
		ids = nil
	}
	return s.notifications.MarkRead(ctx, actor.ID, ids, s.now())
}
