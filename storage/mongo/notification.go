package mongostore

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/schooldesk/core/notification"
)

const notificationsCollection = "notifications"

type notificationRepository struct {
	coll *mongo.Collection
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

// NewNotificationRepository returns a repository on the "notifications" collection of `db`,
// creating its inbox index if missing.
func NewNotificationRepository(ctx context.Context, db *mongo.Database) (notification.Repository, error) {
	coll := db.Collection(notificationsCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "read", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("inbox"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating notifications index")
	}
	return &notificationRepository{coll: coll}, nil
}

func (repo *notificationRepository) InsertNotifications(ctx context.Context, ns ...notification.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	docs := make([]interface{}, len(ns))
	for i := range ns {
		docs[i] = ns[i]
	}
	_, err := repo.coll.InsertMany(ctx, docs)
	return errors.Wrap(err, "inserting notifications")
}

func (repo *notificationRepository) QueryNotifications(
	ctx context.Context,
	userID string,
	unreadOnly bool,
	limit int,
) ([]notification.Notification, error) {
	filter := bson.M{"user_id": userID}
	if unreadOnly {
		filter["read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := repo.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "finding notifications")
	}
	res := make([]notification.Notification, 0)
	if err = cur.All(ctx, &res); err != nil {
		return nil, errors.Wrap(err, "decoding notifications")
	}
	for i := range res {
		res[i].CreatedAt = res[i].CreatedAt.UTC()
	}
	return res, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	res, err := repo.coll.UpdateOne(
		ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if res.MatchedCount == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := repo.coll.UpdateMany(
		ctx,
		bson.M{"user_id": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	return int(res.ModifiedCount), nil
}

func (repo *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	n, err := repo.coll.CountDocuments(ctx, bson.M{"user_id": userID, "read": false})
	if err != nil {
		return 0, errors.Wrap(err, "counting notifications")
	}
	return int(n), nil
}
