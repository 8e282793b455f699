package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/schooldesk/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) InsertNotifications(_ context.Context, ns ...notification.Notification) error {
	repo.db.notif.Lock()
	defer repo.db.notif.Unlock()

	for i := range ns {
		n := ns[i]
		repo.db.notif.table[n.ID] = &n
	}
	return nil
}

func (repo *notificationRepository) QueryNotifications(
	_ context.Context,
	userID string,
	unreadOnly bool,
	limit int,
) ([]notification.Notification, error) {
	repo.db.notif.RLock()
	defer repo.db.notif.RUnlock()

	res := make([]notification.Notification, 0)
	for _, n := range repo.db.notif.table {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		res = append(res, *n)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, userID, id string) error {
	repo.db.notif.Lock()
	defer repo.db.notif.Unlock()

	n, ok := repo.db.notif.table[id]
	if !ok || n.UserID != userID {
		return notification.ErrNotFound
	}
	n.Read = true
	return nil
}

func (repo *notificationRepository) MarkAllRead(_ context.Context, userID string) (int, error) {
	repo.db.notif.Lock()
	defer repo.db.notif.Unlock()

	count := 0
	for _, n := range repo.db.notif.table {
		if n.UserID == userID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, userID string) (int, error) {
	repo.db.notif.RLock()
	defer repo.db.notif.RUnlock()

	count := 0
	for _, n := range repo.db.notif.table {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}
