package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/ovaphlow/pitchfork/service-auth/internal/session/entity"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

type Mongo struct {
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{coll: db.Collection(database.CollectionRefreshTokens)}
}

func (r *Mongo) Create(ctx context.Context, t *entity.RefreshToken) error {
	_, err := r.coll.InsertOne(ctx, t)
	return err
}

func (r *Mongo) GetByHash(ctx context.Context, hash string) (*entity.RefreshToken, error) {
	var t entity.RefreshToken
	if err := r.coll.FindOne(ctx, bson.D{{Key: "tokenHashed", Value: hash}}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *Mongo) DeleteByHash(ctx context.Context, hash string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "tokenHashed", Value: hash}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *Mongo) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.coll.DeleteMany(ctx, bson.D{{Key: "userId", Value: accountID}})
	return err
}

func (r *Mongo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.D{{Key: "expiresAt", Value: bson.D{{Key: "$lte", Value: now}}}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
