package repo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/ovaphlow/pitchfork/service-auth/internal/otp/entity"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

type Mongo struct {
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{coll: db.Collection(database.CollectionOTPs)}
}

func (r *Mongo) Create(ctx context.Context, rec *entity.Record) error {
	_, err := r.coll.InsertOne(ctx, rec)
	return err
}

func (r *Mongo) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.coll.DeleteMany(ctx, bson.D{{Key: "userId", Value: accountID}})
	return err
}

func (r *Mongo) Consume(ctx context.Context, accountID string, purpose entity.Purpose, code string, now time.Time) error {
	filter := bson.D{
		{Key: "userId", Value: accountID},
		{Key: "purpose", Value: purpose},
		{Key: "otp", Value: code},
		{Key: "isUsed", Value: false},
		{Key: "expiresAt", Value: bson.D{{Key: "$gt", Value: now}}},
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: bson.D{{Key: "isUsed", Value: true}}}})
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *Mongo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.D{{Key: "expiresAt", Value: bson.D{{Key: "$lte", Value: now}}}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
