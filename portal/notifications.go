package portal

import (
	"context"

	"github.com/jrsteele09/go-brief-portal/cache"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/pkg/errors"
)

func (s *Service) notificationsQuery() cache.Query[[]model.Notification] {
	return cache.Query[[]model.Notification]{
		Key: NotificationListKey,
		Fetch: func(ctx context.Context) ([]model.Notification, error) {
			var list model.NotificationList
			if err := s.gateway.Get(ctx, "/notifications", &list); err != nil {
				return nil, err
			}
			if list.Notifications == nil {
				return []model.Notification{}, nil
			}
			return list.Notifications, nil
		},
		Retry: s.retry(3),
	}
}

func (s *Service) unreadQuery() cache.Query[int] {
	return cache.Query[int]{
		Key: UnreadCountKey,
		Fetch: func(ctx context.Context) (int, error) {
			var unread model.UnreadCount
			err := s.gateway.Get(ctx, "/notifications/unread", &unread)
			return unread.UnreadCount, err
		},
		Retry: s.retry(3),
	}
}

// Notifications returns the user's notifications, newest first.
func (s *Service) Notifications(ctx context.Context) ([]model.Notification, error) {
	list, err := cache.Fetch(ctx, s.cache, s.notificationsQuery())
	return list, errors.Wrap(err, "[Service.Notifications]")
}

func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	count, err := cache.Fetch(ctx, s.cache, s.unreadQuery())
	return count, errors.Wrap(err, "[Service.UnreadCount]")
}

// WatchUnreadCount refetches the unread count every poll interval until ctx
// is done and passes each result to fn. It blocks.
func (s *Service) WatchUnreadCount(ctx context.Context, fn func(count int, err error)) {
	cache.Poll(ctx, s.cache, s.unreadQuery(), s.pollInterval, fn)
}

// MarkNotificationRead marks one notification read. The list and the
// unread count are refetched on their next read.
func (s *Service) MarkNotificationRead(ctx context.Context, id string) error {
	if !validID(id) {
		return invalidID("MarkNotificationRead", id)
	}
	if err := s.gateway.Put(ctx, "/notifications/"+id+"/read", model.MarkNotificationReadRequest{IsRead: true}, nil); err != nil {
		return s.fail("MarkNotificationRead", err, nil)
	}
	s.cache.Invalidate(NotificationsPrefix)
	return nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context) error {
	if err := s.gateway.Put(ctx, "/notifications/read-all", nil, nil); err != nil {
		return s.fail("MarkAllNotificationsRead", err, nil)
	}
	s.cache.Invalidate(NotificationsPrefix)
	s.notifier.Success("All notifications marked as read")
	return nil
}
