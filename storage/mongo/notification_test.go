package mongostore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/notification"
	"github.com/trezcool/schooldesk/storage/mongo"
)

func openRepo(t *testing.T) notification.Repository {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := mongostore.Connect(ctx, core.MongoConfig{URI: uri, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)

	db := client.Database("schooldesk_test_" + uuid.New().String()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	repo, err := mongostore.NewNotificationRepository(ctx, db)
	require.NoError(t, err)
	return repo
}

func TestNotificationRepository(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.InsertNotifications(ctx,
		notification.Notification{ID: "n1", UserID: "t1", Type: notification.TypeTaskAssigned, Title: "a", CreatedAt: base},
		notification.Notification{ID: "n2", UserID: "t1", Type: notification.TypeTaskUpdated, Title: "b", CreatedAt: base.Add(time.Minute)},
		notification.Notification{ID: "n3", UserID: "t2", Type: notification.TypeTaskAssigned, Title: "c", CreatedAt: base},
	))
	require.NoError(t, repo.InsertNotifications(ctx))

	ns, err := repo.QueryNotifications(ctx, "t1", false, 10)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, "n2", ns[0].ID)
	assert.Equal(t, base.Add(time.Minute), ns[0].CreatedAt)

	ns, err = repo.QueryNotifications(ctx, "t1", false, 1)
	require.NoError(t, err)
	assert.Len(t, ns, 1)

	require.NoError(t, repo.MarkRead(ctx, "t1", "n1"))
	assert.Equal(t, notification.ErrNotFound, repo.MarkRead(ctx, "t1", "n3"))
	assert.Equal(t, notification.ErrNotFound, repo.MarkRead(ctx, "t1", "nope"))

	ns, err = repo.QueryNotifications(ctx, "t1", true, 10)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "n2", ns[0].ID)

	n, err := repo.MarkAllRead(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := repo.CountUnread(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = repo.CountUnread(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
